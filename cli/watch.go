package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/semdex/semdex/daemon"
)

var (
	watchInitialIndex bool
	watchBackground   bool
	watchLogDir       string
	watchStatus       bool
	watchStop         bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the project and keep the index in sync",
	Long: `Monitor the project for file changes and update the index as files
settle.

The watcher will:
- Monitor filesystem events (create, modify, delete, rename)
- Apply debouncing to batch rapid changes per file
- Re-chunk and re-embed only the files that changed
- Replace a changed file's vectors wholesale, so shrunken files leave no
  orphaned entries

Runs in the foreground until interrupted (Ctrl+C).

Background mode:
  semdex watch --background              Run in background with default log directory
  semdex watch --background --log-dir /custom/path  Run with custom log directory
  semdex watch --status                  Check if background watcher is running
  semdex watch --stop                    Stop the background watcher

Default log directories:
  Linux:   ~/.local/state/semdex/logs/semdex-watch.log (or $XDG_STATE_HOME)
  macOS:   ~/Library/Logs/semdex/semdex-watch.log
  Windows: %LOCALAPPDATA%\semdex\logs\semdex-watch.log`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchInitialIndex, "index", false, "Run a full index before watching")
	watchCmd.Flags().BoolVar(&watchBackground, "background", false, "Run in background mode")
	watchCmd.Flags().StringVar(&watchLogDir, "log-dir", "", "Directory for log files (default: OS-specific)")
	watchCmd.Flags().BoolVar(&watchStatus, "status", false, "Show background watcher status")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "Stop the background watcher")
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Validate mutually exclusive flags
	activeFlags := 0
	if watchBackground {
		activeFlags++
	}
	if watchStatus {
		activeFlags++
	}
	if watchStop {
		activeFlags++
	}
	if activeFlags > 1 {
		return fmt.Errorf("flags --background, --status, and --stop are mutually exclusive")
	}

	// Determine log directory
	logDir := watchLogDir
	if logDir == "" {
		var err error
		logDir, err = daemon.GetDefaultLogDir()
		if err != nil {
			return fmt.Errorf("failed to get default log directory: %w", err)
		}
	}

	if watchStatus {
		return showWatchStatus(logDir)
	}

	if watchStop {
		stopped, err := stopWatchDaemon(logDir)
		if err != nil {
			return err
		}
		if !stopped {
			fmt.Println("No background watcher is running")
		}
		return nil
	}

	if watchBackground {
		return startBackgroundWatch(logDir)
	}

	// Check if already running in background (automatically cleans up stale PIDs)
	pid, err := daemon.GetRunningPID(logDir)
	if err != nil {
		return fmt.Errorf("failed to check running status: %w", err)
	}
	if pid > 0 {
		return fmt.Errorf("watcher is already running in background (PID %d)\nUse 'semdex watch --stop' to stop it", pid)
	}

	return runWatchForeground(logDir)
}

func runWatchForeground(logDir string) error {
	ctx := context.Background()
	isBackgroundChild := daemon.IsBackground()

	projectRoot, cfg, err := openProject()
	if err != nil {
		return err
	}

	manager, closeAll, err := buildManager(ctx, projectRoot, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	if isBackgroundChild {
		if err := daemon.WritePIDFile(logDir); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() {
			_ = daemon.RemoveReadyFile(logDir)
			_ = daemon.RemovePIDFile(logDir)
		}()
	}

	if watchInitialIndex {
		if isBackgroundChild {
			log.Printf("Indexing %s...", projectRoot)
		} else {
			fmt.Printf("Indexing %s...\n", projectRoot)
		}
		if err := manager.IndexDirectory(ctx, nil); err != nil {
			return fmt.Errorf("initial indexing failed: %w", err)
		}
	}

	if err := manager.StartWatching(ctx); err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}

	if isBackgroundChild {
		if err := daemon.WriteReadyFile(logDir); err != nil {
			log.Printf("Warning: failed to write ready file: %v", err)
		}
		log.Printf("Watching %s for changes...", projectRoot)
	} else {
		fmt.Printf("Watching %s for changes (Ctrl+C to stop)...\n", projectRoot)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	stopCh := daemon.StopChannel()

	select {
	case <-sigCh:
	case <-stopCh:
		log.Println("Stop file detected, shutting down...")
	}

	if isBackgroundChild {
		log.Println("Stopping watcher...")
	} else {
		fmt.Println("\nStopping watcher...")
	}
	if err := manager.StopWatching(); err != nil {
		return fmt.Errorf("failed to stop watcher: %w", err)
	}
	return nil
}

func showWatchStatus(logDir string) error {
	// Get running PID (automatically cleans up stale PIDs)
	pid, err := daemon.GetRunningPID(logDir)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	if pid == 0 {
		fmt.Println("Status: not running")
		fmt.Printf("Log directory: %s\n", logDir)
		return nil
	}

	fmt.Println("Status: running")
	fmt.Printf("PID: %d\n", pid)
	fmt.Printf("Log directory: %s\n", logDir)
	fmt.Printf("Log file: %s\n", daemon.GetLogFile(logDir))
	return nil
}

func stopWatchDaemon(logDir string) (bool, error) {
	// Get running PID (automatically cleans up stale PIDs)
	pid, err := daemon.GetRunningPID(logDir)
	if err != nil {
		return false, fmt.Errorf("failed to read PID file: %w", err)
	}

	if pid == 0 {
		return false, nil
	}

	fmt.Printf("Stopping background watcher (PID %d)...\n", pid)
	if err := daemon.StopProcess(pid); err != nil {
		return false, fmt.Errorf("failed to stop process: %w", err)
	}

	// Wait for process to stop with timeout
	const shutdownTimeout = 30 * time.Second
	const shutdownPollInterval = 500 * time.Millisecond
	deadline := time.Now().Add(shutdownTimeout)
	lastProgress := time.Now()

	for time.Now().Before(deadline) {
		if !daemon.IsProcessRunning(pid) {
			break
		}

		// Show progress message every 5 seconds
		if time.Since(lastProgress) >= 5*time.Second {
			fmt.Println("Waiting for graceful shutdown...")
			lastProgress = time.Now()
		}

		time.Sleep(shutdownPollInterval)
	}

	// Verify the process actually stopped
	if daemon.IsProcessRunning(pid) {
		return false, fmt.Errorf("process did not stop within %v\nStill running? Try: kill -9 %d\nOr check logs at: %s",
			shutdownTimeout, pid, daemon.GetLogFile(logDir))
	}

	// Clean up PID file
	if err := daemon.RemovePIDFile(logDir); err != nil {
		return false, fmt.Errorf("failed to remove PID file: %w", err)
	}

	fmt.Println("Background watcher stopped")
	return true, nil
}

func startBackgroundWatch(logDir string) error {
	// Check if already running (automatically cleans up stale PIDs)
	pid, err := daemon.GetRunningPID(logDir)
	if err != nil {
		return fmt.Errorf("failed to check running status: %w", err)
	}
	if pid > 0 {
		return fmt.Errorf("watcher is already running (PID %d)", pid)
	}

	logFile := daemon.GetLogFile(logDir)

	// Clear any stale ready marker from a previous run before polling for it
	_ = daemon.RemoveReadyFile(logDir)

	// Build args for background process (exclude --background flag)
	childArgs := []string{"watch"}
	if watchInitialIndex {
		childArgs = append(childArgs, "--index")
	}
	if watchLogDir != "" {
		childArgs = append(childArgs, "--log-dir", watchLogDir)
	}

	childPID, exitCh, err := daemon.SpawnBackground(logDir, childArgs)
	if err != nil {
		return fmt.Errorf("failed to start background process: %w", err)
	}

	// Wait for process to become ready or fail
	// Poll for ready file with timeout, also checking for early child exit
	const startupTimeout = 30 * time.Second
	const pollInterval = 250 * time.Millisecond
	deadline := time.Now().Add(startupTimeout)

	for time.Now().Before(deadline) {
		if daemon.IsReady(logDir) {
			fmt.Printf("Background watcher started (PID %d)\n", childPID)
			fmt.Printf("Logs: %s\n", logFile)
			fmt.Printf("\nUse 'semdex watch --status' to check status\n")
			fmt.Printf("Use 'semdex watch --stop' to stop the watcher\n")
			return nil
		}

		// Check if child process exited early (detects failures immediately,
		// unlike kill(0) which reports zombies as alive)
		select {
		case <-exitCh:
			return fmt.Errorf("background process failed to start (check logs at %s)", logFile)
		default:
		}

		time.Sleep(pollInterval)
	}

	// Timeout - process is still running but hasn't become ready
	return fmt.Errorf("timeout waiting for process to become ready after %v (check logs at %s)", startupTimeout, logFile)
}
