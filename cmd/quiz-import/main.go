package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"wizzzard/config"
	"wizzzard/logger"
	"wizzzard/models"
	"wizzzard/services"
)

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run imports one definition file. Cleanup is deferred here so that it
// happens on every error path before main exits.
func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("quiz-import", flag.ContinueOnError)
	file := fs.String("file", "", "quiz definition JSON file")
	hostUID := fs.String("host-uid", "", "uid of the hosting account")
	hostName := fs.String("host-name", "", "display name of the host")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" || *hostUID == "" {
		fs.Usage()
		return errors.New("-file and -host-uid are required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.LogLevel, ""); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	def, err := services.LoadDefinition(*file)
	if err != nil {
		return fmt.Errorf("failed to read quiz: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backend, err := services.OpenBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open backend: %w", err)
	}
	defer backend.Close()

	svc := services.NewQuizService(backend.Quizzes)
	defer svc.Shutdown()

	q, err := svc.CreateQuiz(ctx, def.Title, def.ToQuestions(), models.Identity{UID: *hostUID, DisplayName: *hostName})
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}

	fmt.Fprintf(out, "✅ Created quiz %q\n", q.Title)
	fmt.Fprintf(out, "   id:   %s\n", q.ID)
	fmt.Fprintf(out, "   code: %s\n", q.Code)
	return nil
}
