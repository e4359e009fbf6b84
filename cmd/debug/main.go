package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/log"

	"github.com/fabrica-dev/fabrica/cmd/debug/models"
	"github.com/fabrica-dev/fabrica/internal/catalog"
	"github.com/fabrica-dev/fabrica/internal/persist"
)

func main() {
	dbPath := flag.String("db", "./saves/world.db", "Path to the world database")
	contentDB := flag.String("content", "", "Path to the content database (embedded catalog when empty)")
	startView := flag.String("view", "menu", "Starting view (menu, chunks, players, overview)")
	logLevel := flag.String("log", "warn", "Log level (debug, info, warn, error)")
	flag.Parse()

	switch *logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.WarnLevel)
	}

	if len(os.Getenv("DEBUG")) > 0 {
		f, err := tea.LogToFile("debug.log", "debug")
		if err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		defer f.Close()
	}

	if _, err := os.Stat(*dbPath); err != nil {
		log.Fatal("World database not found", "path", *dbPath)
	}

	db, err := persist.Open(*dbPath)
	if err != nil {
		log.Fatal("Failed to open world database", "error", err, "path", *dbPath)
	}
	defer db.Close()

	cat := catalog.Load(*contentDB)

	app := models.NewApp(db, cat, *startView)
	program := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		log.Fatal("Error running save inspector", "error", err)
	}
}
