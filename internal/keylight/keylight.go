// Package keylight implements a status-line block showing the keyboard
// backlight brightness. Brightness is read from sysfs on a fixed interval,
// so the block works on Wayland and needs no helper binaries.
package keylight

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"imebar/internal/bar"
)

// Config holds the block's tunables.
type Config struct {
	// Interval is the polling interval.
	Interval time.Duration

	// BrightnessFile is the sysfs brightness file to read.
	BrightnessFile string
}

// Block is the keyboard backlight block.
type Block struct {
	id       string
	widget   *bar.TextWidget
	interval time.Duration
	device   string
}

// New constructs the block. The device file is only read during Update, so
// construction cannot fail.
func New(cfg Config) *Block {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Block{
		id:       uuid.NewString(),
		widget:   bar.NewTextWidget("keylight").WithText("Keylight"),
		interval: cfg.Interval,
		device:   cfg.BrightnessFile,
	}
}

// ID returns the block's identifier.
func (b *Block) ID() string {
	return b.id
}

// Update rereads the brightness file and asks to be polled again after the
// configured interval.
func (b *Block) Update() (*time.Duration, error) {
	value, err := readBrightness(b.device)
	if err != nil {
		b.widget.SetState(bar.StateWarning)
		return &b.interval, err
	}
	b.widget.SetText(strconv.FormatUint(uint64(value), 10))
	b.widget.SetState(bar.StateIdle)
	return &b.interval, nil
}

// View returns the block's widget.
func (b *Block) View() *bar.TextWidget {
	return b.widget
}

// Click accepts click events; brightness is not adjustable from the bar.
func (b *Block) Click(bar.ClickEvent) error {
	return nil
}

// readBrightness reads a brightness value from the given sysfs file.
func readBrightness(path string) (uint16, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read brightness file: %w", err)
	}
	value, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("parse brightness value: %w", err)
	}
	return uint16(value), nil
}
