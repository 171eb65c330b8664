package telemetry

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// GopsutilProbe reads device health from the OS. CPU utilization is measured
// since the previous call, so the first sample after startup reads low.
type GopsutilProbe struct{}

func NewGopsutilProbe() *GopsutilProbe { return &GopsutilProbe{} }

func (GopsutilProbe) CPUPercent() (float64, error) {
	percentages, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("no cpu readings")
	}
	return percentages[0], nil
}

func (GopsutilProbe) MemPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

// TemperatureC prefers the SoC/package sensor; on a Pi that is
// "cpu_thermal". Falls back to the first sensor reported.
func (GopsutilProbe) TemperatureC() (float64, error) {
	temps, err := host.SensorsTemperatures()
	if err != nil || len(temps) == 0 {
		return 0, fmt.Errorf("no temperature sensors: %v", err)
	}
	for _, t := range temps {
		key := strings.ToLower(t.SensorKey)
		if strings.Contains(key, "cpu_thermal") || strings.Contains(key, "coretemp") || strings.Contains(key, "cpu") {
			return t.Temperature, nil
		}
	}
	return temps[0].Temperature, nil
}

var _ SystemProbe = (*GopsutilProbe)(nil)
