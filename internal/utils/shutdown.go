package utils

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownManager collects cleanup tasks and runs them on SIGINT/SIGTERM.
type ShutdownManager struct {
	cancel context.CancelFunc
	tasks  []func(context.Context) error
	mu     sync.Mutex
}

func NewShutdownManager(ctx context.Context) (context.Context, *ShutdownManager) {
	ctx, cancel := context.WithCancel(ctx)
	return ctx, &ShutdownManager{cancel: cancel}
}

func (sm *ShutdownManager) Register(task func(context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.tasks = append(sm.tasks, task)
}

func (sm *ShutdownManager) StartListening() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("[SHUTDOWN] Received signal: %v", sig)
		sm.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		sm.mu.Lock()
		defer sm.mu.Unlock()
		for _, task := range sm.tasks {
			if err := task(ctx); err != nil {
				log.Printf("[SHUTDOWN] Cleanup error: %v", err)
			}
		}

		log.Println("[SHUTDOWN] Graceful shutdown complete")
		os.Exit(0)
	}()
}
