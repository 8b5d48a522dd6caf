package main

import (
	"testing"

	_ "github.com/cxp-circuitos/cxp/internal/testing/guard"
)

func TestMainSkipsInTestMode(t *testing.T) {
	main()
}
