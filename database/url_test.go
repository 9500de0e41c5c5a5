package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructDatabaseURL(t *testing.T) {
	tests := []struct {
		name         string
		baseURL      string
		databaseName string
		expected     string
	}{
		{"no database name", "postgres://u:p@localhost:5432", "", "postgres://u:p@localhost:5432"},
		{"plain", "postgres://u:p@localhost:5432", "moneywave", "postgres://u:p@localhost:5432/moneywave?sslmode=disable"},
		{"trailing slash", "postgres://u:p@localhost:5432/", "moneywave", "postgres://u:p@localhost:5432/moneywave?sslmode=disable"},
		{"existing query", "postgres://u:p@localhost:5432?connect_timeout=5", "moneywave", "postgres://u:p@localhost:5432/moneywave?connect_timeout=5&sslmode=disable"},
		{"sslmode kept", "postgres://u:p@db:5432?sslmode=require", "moneywave", "postgres://u:p@db:5432/moneywave?sslmode=require"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConstructDatabaseURL(tt.baseURL, tt.databaseName))
		})
	}
}
