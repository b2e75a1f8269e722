// Package domain holds the records the person-batch jobs move around.
package domain

import (
	"fmt"
	"strconv"
)

// Person is a row of the person table, a line of the person CSV files and a row of
// the Parquet export.
type Person struct {
	ID      int64  `gorm:"column:id;primaryKey;autoIncrement" parquet:"name=id, type=INT64"`
	Name    string `gorm:"column:name" parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Age     string `gorm:"column:age" parquet:"name=age, type=BYTE_ARRAY, convertedtype=UTF8"`
	Address string `gorm:"column:address" parquet:"name=address, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// TableName maps Person to the person table.
func (Person) TableName() string { return "person" }

// Fields returns the CSV columns id, name, age and address.
func (p Person) Fields() []string {
	return []string{strconv.FormatInt(p.ID, 10), p.Name, p.Age, p.Address}
}

func (p Person) String() string {
	return fmt.Sprintf("Person{id=%d, name=%s, age=%s, address=%s}", p.ID, p.Name, p.Age, p.Address)
}

// NamedPeople returns n people named "test name0".."test name<n-1>".
func NamedPeople(n int) []Person {
	out := make([]Person, n)
	for i := range out {
		out[i] = Person{
			Name:    fmt.Sprintf("test name%d", i),
			Age:     "test age",
			Address: "test address",
		}
	}
	return out
}
