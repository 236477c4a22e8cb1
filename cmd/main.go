package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/gommon/log"

	"fable/pkg/flipbook"
	"fable/pkg/inference"
	"fable/pkg/preview"
	"fable/pkg/server"
	"fable/pkg/story"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	apiKey := os.Getenv("OPENAI_API_KEY")
	openAI := inference.NewOpenAIInferencer(apiKey, os.Getenv("OPENAI_MODEL"), os.Getenv("OPENAI_IMAGE_MODEL"))
	if apiKey == "" {
		openAI.ChangeBaseURL("http://localhost:1234/v1")
		openAI.SetModel("")
	}

	var inf inference.Inferencer = openAI
	if geminiKey := os.Getenv("GEMINI_API_KEY"); geminiKey != "" {
		gemini, err := inference.NewGeminiInferencer(geminiKey, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Fatalf("gemini client: %v", err)
		}
		inf = gemini
	}

	previewDir := os.Getenv("PREVIEW_DIR")
	if previewDir == "" {
		previewDir = "previews"
	}
	previews, err := preview.New(previewDir, time.Hour, time.Hour)
	if err != nil {
		log.Fatalf("preview store: %v", err)
	}

	flipbooks := flipbook.NewClient(os.Getenv("FLIPBOOK_BASE_URL"), os.Getenv("FLIPBOOK_API_KEY"))

	srv := server.NewServer(ctx, story.New(inf, openAI), previews, flipbooks)
	srv.Echo.Logger.SetLevel(log.INFO)

	addr := ":8080"
	if envAddr := os.Getenv("PORT"); envAddr != "" {
		addr = ":" + envAddr
	}

	finishedShutDown := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error(err)
		}
		done()
		close(finishedShutDown)
	}()

	if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(err)
	}
	<-finishedShutDown
}
