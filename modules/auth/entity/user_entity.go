package entity

import (
	"github.com/kdvornichenko/weika-students/core/entity"
)

// User is the tutor account. Students are not users; they are records owned
// by a tutor.
type User struct {
	entity.BaseEntity
	Email        string `db:"email" json:"email"`
	Name         string `db:"name" json:"name"`
	PasswordHash string `db:"password_hash" json:"-"`
}

func (User) TableName() string {
	return "users"
}
