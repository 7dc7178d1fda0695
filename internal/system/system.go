package system

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// DeckExtensions перечисляет поддерживаемые форматы презентаций.
var DeckExtensions = []string{".pdf", ".pptx"}

func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Warn().Err(err).Msg("не удалось получить лимит файлов")
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Warn().Err(err).Msg("не удалось установить лимит файлов")
	} else {
		log.Debug().Uint64("limit", uint64(rLimit.Cur)).Msg("лимит открытых файлов увеличен")
	}
}

// FindLatestDeck возвращает самую свежую презентацию (.pdf/.pptx) в папке.
func FindLatestDeck(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !IsDeck(f.Name()) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("в папке %s не найдено презентаций (%s)", dir, strings.Join(DeckExtensions, ", "))
	}

	return latestFile, nil
}

func IsDeck(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range DeckExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// EncoderThreads выбирает число потоков x264: физические ядра, но не больше limit.
// limit <= 0 снимает ограничение.
func EncoderThreads(limit int) int {
	n, err := cpu.Counts(false)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	if limit > 0 && n > limit {
		n = limit
	}
	if n < 1 {
		n = 1
	}
	return n
}

// MemoryReport возвращает короткую сводку по памяти для логов.
func MemoryReport() string {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%% of %d MiB used", vm.UsedPercent, vm.Total>>20)
}
