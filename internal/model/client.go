// internal/model/client.go
package model

type Client struct {
    ID         int    `db:"id" json:"id"`
    Email      string `db:"email" json:"email"`
    FirstName  string `db:"first_name" json:"first_name"`
    Surname    string `db:"surname" json:"surname"`
    Patronymic string `db:"patronymic" json:"patronymic,omitempty"`
    Comment    string `db:"comment" json:"comment,omitempty"`
}
