// Command toumapet runs a toumapet ROM image against an SDL2 window,
// matching the original's main(): ROM/save load, the 30Hz game loop, and
// save write-back on exit.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/toumapet/toumapet-emu/internal/device"
	"github.com/toumapet/toumapet-emu/internal/rom"
	"github.com/toumapet/toumapet-emu/internal/video"
	"github.com/toumapet/toumapet-emu/internal/window/sdlwindow"
)

const maxROMBytes = 8 << 20

func main() {
	romPath := flag.String("rom", "toumapet.bin", "path to the ROM/flash image")
	savePath := flag.String("save", "", "path to a save-state file (empty disables save load/store)")
	zoom := flag.Int("zoom", 3, "integer display scale factor (1-5)")
	updateTime := flag.Bool("update-time", false, "seed the RTC shadow registers from the host clock at boot")
	logPath := flag.String("log", "", "write a structured log to this file (empty disables it)")
	logSize := flag.Int("log-size", 1<<20, "log size in bytes; clamped to 256..1<<30 and otherwise unused, so the --log file is not size-limited")
	flag.Parse()

	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	if *logPath != "" {
		size := *logSize
		if size < 256 {
			size = 256
		}
		if size > 1<<30 {
			size = 1 << 30
		}
		f, err := os.Create(*logPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.TraceLevel)
	}
	entry := log.WithField("rom", *romPath)

	z := *zoom
	if z < 1 {
		z = 1
	}
	if z > 5 {
		z = 5
	}

	r, err := rom.Load(*romPath, maxROMBytes)
	if err != nil {
		entry.Fatal(err)
	}
	if err := r.VerifyAndUnmask(); err != nil {
		entry.Fatal(err)
	}

	win, err := sdlwindow.New("toumapet", video.ScreenWidth, r.ScreenHeight(), z, entry)
	if err != nil {
		entry.Fatal(err)
	}
	defer win.Close()

	m := device.New(r, win)

	if *savePath != "" {
		if data, err := os.ReadFile(*savePath); err == nil {
			if err := loadSaveFile(m, data); err != nil {
				entry.Fatal(err)
			}
		}
	}

	if *updateTime {
		m.ApplyHostTime()
	}

	pal := video.BuildPalette(win.RedByteIndex())
	if err := m.Run(pal, z); err != nil {
		entry.Fatal(err)
	}

	if *savePath != "" {
		if err := writeSaveFile(m, *savePath); err != nil {
			entry.Fatal(err)
		}
	}
}

// loadSaveFile splits a save file's three concatenated regions (CPU RAM,
// the ROM's save-region tail, and the screen buffer) and hands them to
// device.Machine.LoadSave, matching main()'s save_fn read path.
func loadSaveFile(m *device.Machine, data []byte) error {
	const ramSize = 0x10000
	if len(data) < ramSize+int(rom.SaveWindowSize) {
		return fmt.Errorf("save file too short")
	}
	ram := data[:ramSize]
	save := data[ramSize : ramSize+int(rom.SaveWindowSize)]
	screen := data[ramSize+int(rom.SaveWindowSize):]
	return m.LoadSave(ram, save, screen)
}

func writeSaveFile(m *device.Machine, path string) error {
	ram, save, screen := m.StoreSave()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, chunk := range [][]byte{ram, save, screen} {
		if _, err := f.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}
