// internal/model/message.go
package model

// Message is the immutable subject/body a mailing sends. Mailings
// reference messages, they do not own them.
type Message struct {
    ID      int    `db:"id" json:"id"`
    Subject string `db:"subject" json:"subject"`
    Body    string `db:"body" json:"body"`
}
