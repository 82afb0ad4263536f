package main

import (
	"github.com/trezcool/masomo/storage/database"
)

var migrateFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	return migrateFunc(args[0], cli.db, args[1:]...)
}
