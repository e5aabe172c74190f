package configlibsql

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Struct struct {
	File string `json:"file"`
	// remote libsql url, e.g. "libsql://edubag-myorg.turso.io?authToken=..."
	// takes precedence over File when set
	Url string `json:"url"`
}

func (config Struct) OpenDB() (*sql.DB, error) {
	if config.Url != "" {
		return sql.Open("libsql", config.Url)
	}
	if config.File == "" {
		return nil, fmt.Errorf("a path was not specified")
	}

	err := os.MkdirAll(filepath.Dir(config.File), 0755)
	if err != nil {
		return nil, err
	}
	_, statErr := os.Stat(config.File)
	if os.IsNotExist(statErr) {
		f, err := os.Create(config.File)
		if err != nil {
			return nil, err
		}
		f.Close()
	}

	db, err := sql.Open("sqlite", config.File)
	if err != nil {
		return nil, err
	}
	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	return db, nil
}
