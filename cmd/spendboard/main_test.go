package main

import (
	"testing"

	"github.com/spendboard/spendboard/internal/app"
	_ "github.com/spendboard/spendboard/internal/testing/guard"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	if !app.InTestMode() {
		t.Fatal("expected test mode to be enabled by the guard package")
	}
	main()
}
