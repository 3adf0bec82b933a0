package main

import (
	"testing"

	"github.com/storekeep/storekeep/internal/app"
	_ "github.com/storekeep/storekeep/internal/testing/guard"
)

func TestMainReturnsInTestMode(t *testing.T) {
	if !app.InTestMode() {
		t.Fatal("guard did not enable test mode")
	}
	main()
}
