package collector

import (
	"fmt"
	"math"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is one immutable record of host facts. Capacity fields are in
// gibibytes rounded to two decimals.
type Snapshot struct {
	Hostname    string    `json:"hostname" bson:"hostname"`
	OS          string    `json:"os" bson:"os"`
	OSVersion   string    `json:"os_version" bson:"os_version"`
	CPU         string    `json:"cpu" bson:"cpu"`
	CPUCores    int       `json:"cpu_cores" bson:"cpu_cores"`
	CPUThreads  int       `json:"cpu_threads" bson:"cpu_threads"`
	MemoryTotal float64   `json:"memory_total" bson:"memory_total"`
	DiskTotal   float64   `json:"disk_total" bson:"disk_total"`
	CollectedAt time.Time `json:"collected_at" bson:"collected_at"`
}

// Collector gathers host facts via gopsutil.
type Collector struct {
	diskPath string
}

func New(diskPath string) *Collector {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Collector{diskPath: diskPath}
}

// Collect builds a snapshot of the current host. Physical cores never
// exceed logical threads.
func (c *Collector) Collect() (Snapshot, error) {
	info, err := host.Info()
	if err != nil {
		return Snapshot{}, fmt.Errorf("host info: %w", err)
	}
	cores, err := cpu.Counts(false)
	if err != nil {
		return Snapshot{}, fmt.Errorf("physical cpu count: %w", err)
	}
	threads, err := cpu.Counts(true)
	if err != nil {
		return Snapshot{}, fmt.Errorf("logical cpu count: %w", err)
	}
	var model string
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		model = infos[0].ModelName
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Snapshot{}, fmt.Errorf("memory: %w", err)
	}
	usage, err := disk.Usage(c.diskPath)
	if err != nil {
		return Snapshot{}, fmt.Errorf("disk usage: %w", err)
	}
	return Snapshot{
		Hostname:    info.Hostname,
		OS:          info.Platform,
		OSVersion:   info.PlatformVersion,
		CPU:         model,
		CPUCores:    cores,
		CPUThreads:  threads,
		MemoryTotal: ToGiB(vm.Total),
		DiskTotal:   ToGiB(usage.Total),
		CollectedAt: time.Now().UTC(),
	}, nil
}

// ToGiB converts bytes to gibibytes rounded to two decimals.
func ToGiB(bytes uint64) float64 {
	return math.Round(float64(bytes)/(1024*1024*1024)*100) / 100
}
