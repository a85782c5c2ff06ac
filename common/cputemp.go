package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	InvalidCpuTemp = float32(-99.0)

	// CpuTempPath is where the Raspberry Pi kernel reports the SoC temperature.
	CpuTempPath = "/sys/class/thermal/thermal_zone0/temp"
)

type CpuTempUpdateFunc func(cpuTemp float32)

// ParseCpuTemp converts the content of a thermal zone file to degrees C.
// Values above 1000 are millidegrees.
func ParseCpuTemp(raw string) float32 {
	tInt, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return InvalidCpuTemp
	}
	if tInt > 1000 {
		return float32(tInt) / float32(1000.0)
	}
	return float32(tInt)
}

/* CpuTempMonitor reads the board temperature from path every interval and
calls updater with valid values until stop is closed. It runs in its own
goroutine because reading the thermal zone sometimes hangs for a while. */
func CpuTempMonitor(path string, interval time.Duration, stop <-chan struct{}, updater CpuTempUpdateFunc) {
	timer := time.NewTicker(interval)
	defer timer.Stop()
	for {
		t := InvalidCpuTemp
		if temp, err := os.ReadFile(path); err == nil {
			t = ParseCpuTemp(string(temp))
		}
		if IsCPUTempValid(t) {
			updater(t)
		}
		select {
		case <-stop:
			return
		case <-timer.C:
		}
	}
}

// Check if CPU temperature is valid. Assume <= 0 is invalid.
func IsCPUTempValid(cpuTemp float32) bool {
	return cpuTemp > 0
}
