package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(Config{Driver: "nosuchdriver", DSN: "dsn"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open nosuchdriver database")
}
