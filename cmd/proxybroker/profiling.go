package main

import (
	"os"
	"runtime"
	"runtime/pprof"
)

// startProfiling mirrors trustydns-proxy/main.go's cpu/mem profiling setup: open the files up
// front (before serve's optional privilege-dropping via osutil.Constrain) and return a
// closer that stops CPU profiling and writes the heap profile.
func startProfiling(cpuprofile, memprofile string) (func(), error) {
	var cpuFile, memFile *os.File
	var err error

	if len(cpuprofile) > 0 {
		cpuFile, err = os.Create(cpuprofile)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(cpuFile); err != nil {
			cpuFile.Close()
			return nil, err
		}
	}

	if len(memprofile) > 0 {
		memFile, err = os.Create(memprofile)
		if err != nil {
			if cpuFile != nil {
				pprof.StopCPUProfile()
				cpuFile.Close()
			}
			return nil, err
		}
	}

	return func() {
		if cpuFile != nil {
			pprof.StopCPUProfile()
			cpuFile.Close()
		}
		if memFile != nil {
			runtime.GC()
			pprof.WriteHeapProfile(memFile)
			memFile.Close()
		}
	}, nil
}
