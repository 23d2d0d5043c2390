package main

import (
	"context"

	"github.com/spf13/viper"

	"github.com/eikaru/canvasgen/internal/canvas"
	"github.com/eikaru/canvasgen/internal/comfy"
	"github.com/eikaru/canvasgen/internal/generation"
	"github.com/eikaru/canvasgen/internal/logger"
	"github.com/eikaru/canvasgen/internal/server"
	"github.com/eikaru/canvasgen/internal/workflow"
)

func main() {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	var backendConfig comfy.Config
	if err := viper.UnmarshalKey("backend", &backendConfig); err != nil {
		panic(err)
	}
	settings := generation.DefaultSettings()
	if err := viper.UnmarshalKey("generation", settings); err != nil {
		panic(err)
	}

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "9000")
	viper.SetDefault("document.width", 1024)
	viper.SetDefault("document.height", 1024)
	host := viper.GetString("server.host")
	port := viper.GetString("server.port")
	apiKey := viper.GetString("server.apiKey")

	client := comfy.NewClient(backendConfig)
	if err := client.Connect(context.Background()); err != nil {
		panic(err)
	}

	doc := canvas.NewMemDocument(canvas.Extent{
		Width:  viper.GetInt("document.width"),
		Height: viper.GetInt("document.height"),
	})
	if path := viper.GetString("document.path"); path != "" {
		doc.SetFilename(path)
	}

	model := generation.NewModel(doc, client, workflow.Graph{}, settings)
	go func() {
		if err := client.Listen(context.Background(), model.HandleMessage); err != nil {
			logger.Errorf("backend listener stopped: %s", err)
		}
	}()

	logger.Infof("service is starting, host: %s, port: %s", host, port)
	server.Start(host, port, apiKey, model)
}
