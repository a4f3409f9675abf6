package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/readkeeper/internal/flagx"
	"github.com/dmitrijs2005/readkeeper/internal/server"
	"github.com/dmitrijs2005/readkeeper/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	if userID := issueFlag(); userID != "" {
		token, err := server.IssueToken(cfg, userID)
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(token)
		return
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}

// issueFlag returns the user id given with -issue, if any.
func issueFlag() string {
	var userID string

	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	fs.StringVar(&userID, "issue", "", "print an access token for this user id and exit")
	if err := fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-issue"})); err != nil {
		log.Fatalf("%v", err)
	}
	return userID
}
