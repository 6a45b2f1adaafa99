// Command relayhost runs the desktop host agent: it owns the PTY-backed
// remote sessions described in §4.D and speaks the relay's WebSocket wire
// vocabulary as the host role. Grounded on cmd/relayd/main.go's startup and
// shutdown shape, generalized from serving the gateway to dialing it.
package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/climanger/relay/internal/v1/logging"
	"github.com/climanger/relay/internal/v1/relaywire"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	for _, path := range []string{".env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	if err := logging.Initialize(os.Getenv("ENVIRONMENT") != "production"); err != nil {
		panic(err)
	}

	relayURL := os.Getenv("RELAY_URL")
	if relayURL == "" {
		relayURL = "http://localhost:8080"
	}

	deviceName, _ := os.Hostname()
	if deviceName == "" {
		deviceName = "unnamed-host"
	}

	ctx := context.Background()
	deviceID, err := loadOrCreateDeviceID()
	if err != nil {
		logging.Fatal(ctx, "failed to determine device id", zap.Error(err))
	}
	logging.Info(ctx, "host agent starting", zap.String("device_id", deviceID), zap.String("relay_url", relayURL))

	pin, err := createPin(relayURL, deviceID, deviceName)
	if err != nil {
		logging.Fatal(ctx, "failed to create pairing code", zap.Error(err))
	}
	fmt.Printf("Pair this host with the mobile app:\n  device id: %s\n  pin:       %s\n", deviceID, pin)

	client, err := relaywire.Dial(relayURL, deviceID)
	if err != nil {
		logging.Fatal(ctx, "failed to connect to relay", zap.Error(err))
	}
	if err := client.Register(deviceName); err != nil {
		logging.Fatal(ctx, "failed to register with relay", zap.Error(err))
	}

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logging.Info(ctx, "shutting down host agent")
	case err := <-runErr:
		logging.Error(ctx, "relay connection lost", zap.Error(err))
	}

	if err := client.Close(); err != nil {
		logging.Error(ctx, "error while closing relay connection", zap.Error(err))
	}
	logging.Info(ctx, "host agent exited")
}

type createPinRequest struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Error   string         `json:"error"`
}

func createPin(relayURL, deviceID, deviceName string) (string, error) {
	body, _ := json.Marshal(createPinRequest{DeviceID: deviceID, DeviceName: deviceName})
	resp, err := http.Post(relayURL+"/pin/create", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("pin/create request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("pin/create response decode failed: %w", err)
	}
	if !env.Success {
		return "", fmt.Errorf("pin/create failed: %s", env.Error)
	}
	pin, _ := env.Data["pin"].(string)
	if pin == "" {
		return "", fmt.Errorf("pin/create response missing pin")
	}
	return pin, nil
}

// loadOrCreateDeviceID persists a word-word-NN device identifier across
// restarts so the same host keeps the same address. Device identifiers are
// generated and owned by the host agent; the relay only validates their
// shape.
func loadOrCreateDeviceID() (string, error) {
	path, err := deviceIDPath()
	if err != nil {
		return "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		id := string(bytes.TrimSpace(data))
		if id != "" {
			return id, nil
		}
	}

	id, err := generateDeviceID()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}

func deviceIDPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "climanger-relay-host", "device_id"), nil
}

// deviceIDAdjectives and deviceIDNouns back generateDeviceID's
// "word-word-NN" identifier, matching auth.DeviceIDPattern.
var deviceIDAdjectives = []string{
	"swift", "quiet", "amber", "brisk", "calm", "eager", "golden", "hollow",
	"ivory", "lucky", "mellow", "nimble", "opal", "plain", "rapid", "sunny",
}

var deviceIDNouns = []string{
	"tiger", "river", "falcon", "meadow", "harbor", "ember", "willow", "cedar",
	"comet", "lantern", "otter", "summit", "canyon", "prairie", "beacon", "orchid",
}

func generateDeviceID() (string, error) {
	adjective, err := randomWord(deviceIDAdjectives)
	if err != nil {
		return "", err
	}
	noun, err := randomWord(deviceIDNouns)
	if err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(100))
	if err != nil {
		return "", fmt.Errorf("generate device id suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s-%02d", adjective, noun, n.Int64()), nil
}

func randomWord(words []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", fmt.Errorf("select random word: %w", err)
	}
	return words[n.Int64()], nil
}
