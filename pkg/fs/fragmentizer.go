package fs

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/meshfs/meshfs/internal/logger"
)

// fragmentizerManager is the background maintenance subsystem: it
// periodically sweeps the data cache for blocks whose file entry no
// longer exists (left behind by interrupted removals) and reclaims them.
//
// The loop only runs when the instance enables fragmentation and only
// starts after cluster join, so it never races the consistency gate.
type fragmentizerManager struct {
	inst *Instance

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

func newFragmentizerManager() *fragmentizerManager {
	return &fragmentizerManager{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (f *fragmentizerManager) Name() string {
	return "fragmentizer"
}

func (f *fragmentizerManager) Start(inst *Instance) error {
	f.inst = inst
	return nil
}

func (f *fragmentizerManager) OnClusterReady() error {
	if !f.inst.Config().FragmentizerEnabled {
		return nil
	}

	f.running = true
	go f.run()
	return nil
}

func (f *fragmentizerManager) run() {
	defer close(f.doneCh)

	interval := f.inst.Config().FragmentizerInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Debug("Fragmentizer for %q running (interval %s)", f.inst.Config().Name, interval)

	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			collected, err := f.collectOnce()
			if err != nil {
				logger.Warn("Fragmentizer pass for %q failed: %v", f.inst.Config().Name, err)
				continue
			}
			if collected > 0 {
				logger.Debug("Fragmentizer for %q reclaimed %d block(s)", f.inst.Config().Name, collected)
			}
			f.inst.coord.FragmentizerPass(f.inst.Config().Name, collected)
		}
	}
}

// collectOnce performs one sweep and returns the number of reclaimed
// blocks.
func (f *fragmentizerManager) collectOnce() (int, error) {
	var orphans []string

	err := f.inst.dataCache.ForEach(func(key string, value []byte) error {
		path, ok := blockKeyPath(key)
		if !ok {
			return nil
		}

		_, exists, err := f.inst.meta.lookup(path)
		if err != nil {
			return err
		}
		if !exists {
			orphans = append(orphans, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	collected := 0
	for _, key := range orphans {
		removed, err := f.inst.dataCache.Delete(key)
		if err != nil {
			return collected, err
		}
		if removed {
			collected++
		}
	}
	return collected, nil
}

// blockKeyPath extracts the file path from a stored block key of the
// form "path#index".
func blockKeyPath(key string) (string, bool) {
	i := strings.LastIndexByte(key, '#')
	if i <= 0 {
		return "", false
	}
	if _, err := strconv.ParseInt(key[i+1:], 10, 64); err != nil {
		return "", false
	}
	return key[:i], true
}

func (f *fragmentizerManager) PreStop(cancel bool) error {
	f.stopOnce.Do(func() { close(f.stopCh) })
	return nil
}

func (f *fragmentizerManager) Stop(cancel bool) error {
	f.stopOnce.Do(func() { close(f.stopCh) })

	if f.running && !cancel {
		<-f.doneCh
	}
	f.running = false
	return nil
}
