package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// capture-sim pretends to be a camera device: it connects to the frame
// link, announces its calibration bounds, and streams noisy synthetic
// frames at a fixed rate. Useful for exercising the stacking pipeline
// without hardware.

type hello struct {
	DeviceID      string  `json:"device_id"`
	MinISO        float64 `json:"min_iso"`
	MaxISO        float64 `json:"max_iso"`
	MinExposureMs int64   `json:"min_exposure_ms"`
	MaxExposureMs int64   `json:"max_exposure_ms"`
}

func main() {
	deviceID := os.Getenv("DEVICE_ID")
	if deviceID == "" {
		deviceID = "sim-0"
	}

	serverURL := os.Getenv("SERVER_URL")
	if serverURL == "" {
		serverURL = "ws://localhost:8080/v1/devices/" + deviceID + "/frames"
	}

	fps := 25
	if v := os.Getenv("FPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			fps = n
		}
	}

	brightness := 0.10
	if v := os.Getenv("BRIGHTNESS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			brightness = f
		}
	}

	fmt.Printf("[SIM] Connecting to %s\n", serverURL)
	conn, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	h := hello{
		DeviceID:      deviceID,
		MinISO:        50,
		MaxISO:        6400,
		MinExposureMs: 1,
		MaxExposureMs: 1000,
	}
	helloData, _ := json.Marshal(h)
	if err := conn.WriteMessage(websocket.TextMessage, helloData); err != nil {
		log.Fatal("hello:", err)
	}
	fmt.Println("[SIM] Connected, streaming frames...")

	// Drain server messages so pings are answered; print capture controls.
	go func() {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage {
				fmt.Printf("[SIM] Control: %s\n", data)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-sig:
			fmt.Printf("[SIM] Stopping after %d frames\n", sent)
			return
		case <-ticker.C:
			frame := renderFrame(brightness)
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				log.Fatal("write:", err)
			}
			sent++
			if sent%50 == 0 {
				fmt.Printf("[SIM] Sent %d frames\n", sent)
			}
		}
	}
}

// renderFrame produces a dim gradient plus shot-noise, roughly what a
// handheld night exposure looks like before stacking.
func renderFrame(brightness float64) []byte {
	const w, h = 320, 240
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := brightness * (0.6 + 0.4*float64(x)/float64(w))
			noise := (rand.Float64() - 0.5) * 0.08
			v := base + noise
			if v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
			c := uint8(v * 255)
			img.SetRGBA(x, y, color.RGBA{R: c, G: c, B: uint8(float64(c) * 0.9), A: 0xff})
		}
	}

	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	return buf.Bytes()
}
