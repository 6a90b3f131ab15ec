package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courier/auth"
	"courier/config"
	"courier/router"
	"courier/storage"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	store, err := storage.OpenStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	writeTimeout := time.Duration(cfg.WriteTimeout) * time.Second

	engine := storage.NewEngine(store)
	storageServer := storage.NewServer(engine, cfg.StoragePort, writeTimeout)

	storageAddr := fmt.Sprintf("127.0.0.1:%d", cfg.StoragePort)
	notifyAddr := fmt.Sprintf("127.0.0.1:%d", cfg.NotifyPort)
	authService := auth.NewService(storage.NewClient(storageAddr), notifyAddr)
	authServer := auth.NewServer(authService, cfg.AuthPort, writeTimeout)

	routerServer := router.New(&router.Config{
		Port:         cfg.RouterPort,
		NotifyPort:   cfg.NotifyPort,
		AuthAddr:     fmt.Sprintf("127.0.0.1:%d", cfg.AuthPort),
		StorageAddr:  storageAddr,
		WriteTimeout: writeTimeout,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		store.Close()
		os.Exit(0)
	}()

	var group errgroup.Group
	group.Go(storageServer.Start)
	group.Go(authServer.Start)
	group.Go(routerServer.Start)

	log.Fatal(group.Wait())
}
