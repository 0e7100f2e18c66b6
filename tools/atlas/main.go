// atlas schema loader：把gorm模型輸出成SQL供atlas規劃migration，
// 用法：atlas的external_schema指向 `go run ./tools/atlas`。
package main

import (
	"fmt"
	"io"
	"os"

	"ariga.io/atlas-provider-gorm/gormschema"

	"cardbid/models"
)

func errExit(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}

func main() {
	stmts, err := gormschema.New("postgres").Load(
		&models.User{},
		&models.AuctionItem{},
		&models.Bid{},
		&models.Watch{},
	)
	if err != nil {
		errExit("failed to load gorm schema: %v\n", err)
	}
	_, _ = io.WriteString(os.Stdout, stmts)
}
