package database

import "time"

type Channel struct {
	ID   []byte `gorm:"primary_key"`
	Name string `gorm:"unique"`
}

type Sample struct {
	ID        []byte    `gorm:"primary_key"`
	Timestamp time.Time `gorm:"index;not null"`
	Value     int
	ChannelID []byte `gorm:"index;not null"`
	Channel   *Channel
}
