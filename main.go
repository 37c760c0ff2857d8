package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deemkeen/inkwell/db"
	"github.com/deemkeen/inkwell/domain"
	"github.com/deemkeen/inkwell/util"
	"github.com/deemkeen/inkwell/web"
	"github.com/google/uuid"
)

// ensureBootstrapAccount creates an initial admin account on a fresh
// database and prints its API token once. Token issuance is otherwise
// out of scope, so without this a new deployment has no way in.
func ensureBootstrapAccount() {
	err, count := db.GetDB().CountAccounts()
	if err != nil {
		log.Fatalln(err)
	}
	if count > 0 {
		return
	}

	token := util.RandomString(40)
	acc := &domain.Account{
		Id:         uuid.New(),
		Username:   "admin",
		AuthToken:  token,
		Visibility: domain.VisibilityPublic,
		CreatedAt:  time.Now(),
	}
	if err := db.GetDB().CreateAccount(acc); err != nil {
		log.Fatalln(err)
	}
	log.Printf("Created bootstrap account %q, api token: %s", acc.Username, token)
}

func main() {

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf))

	// Opening the database runs the migrations.
	db.GetDB()
	log.Println("Database ready")

	ensureBootstrapAccount()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := web.Router(conf); err != nil {
			log.Fatalln(err)
		}
	}()

	<-done
	log.Println("Stopping server")
}
