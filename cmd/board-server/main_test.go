package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/park285/swapboard/internal/pvp"
)

func TestPrintSeatSecrets(t *testing.T) {
	var buf bytes.Buffer
	printSeatSecrets(&buf, &pvp.Created{SessionID: "s1", Ruleset: "standard", Secrets: [2]string{"bluepw", "redpw"}})

	out := buf.String()
	assert.Contains(t, out, "session s1 (standard)")
	assert.Contains(t, out, "blue password: bluepw")
	assert.Contains(t, out, "red password:  redpw")
}
