// fatstress - Exercise a FAT volume with write/verify/delete cycles
package main

import (
	"context"
	"flag"
	"fmt"
	"hash/crc32"
	"log"
	"math/rand"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hermitretro/fatfuse/internal/fat"
	"github.com/hermitretro/fatfuse/internal/fat/fatmem"
	"github.com/hermitretro/fatfuse/internal/fatimg"
)

var (
	image     = flag.String("image", "", "Path to the FAT disk image")
	mem       = flag.Bool("mem", false, "Use an empty in-memory volume instead of an image")
	dirPath   = flag.String("dir", "/STRESS", "Directory to create the test files in")
	fileCount = flag.Int("files", 32, "Number of files to write")
	fileSize  = flag.Int("size", 48*1024, "Size of each file in bytes")
	chunkSize = flag.Int("chunk", 4096, "Transfer size per read/write call")
	workers   = flag.Int("workers", 4, "Concurrent verification workers")
	keep      = flag.Bool("keep", false, "Keep the test files instead of deleting them")
	seed      = flag.Int64("seed", 0, "Payload seed (0 = derive from time)")
	verbose   = flag.Bool("verbose", false, "Log each file as it is processed")
)

// Statistics counters
type Stats struct {
	writes       atomic.Int64
	reads        atomic.Int64
	deletes      atomic.Int64
	errors       atomic.Int64
	bytesWritten atomic.Int64
	bytesRead    atomic.Int64
}

func main() {
	flag.Parse()

	if *image == "" && !*mem {
		flag.Usage()
		os.Exit(1)
	}
	if !strings.HasPrefix(*dirPath, "/") {
		log.Fatalf("Directory must be an absolute volume path: %s", *dirPath)
	}
	if *fileCount <= 0 || *fileSize <= 0 || *chunkSize <= 0 {
		log.Fatal("files, size and chunk must all be positive")
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	var vol fat.Volume
	if *mem {
		vol = fatmem.New()
	} else {
		vol = fatimg.New(*image)
	}

	fmt.Printf("FAT Volume Stress Test\n")
	fmt.Printf("======================\n")
	if *mem {
		fmt.Printf("Volume:        in-memory\n")
	} else {
		fmt.Printf("Volume:        %s\n", *image)
	}
	fmt.Printf("Directory:     %s\n", *dirPath)
	fmt.Printf("Files:         %d x %d bytes\n", *fileCount, *fileSize)
	fmt.Printf("Chunk Size:    %d bytes\n", *chunkSize)
	fmt.Printf("Workers:       %d\n", *workers)
	fmt.Printf("Seed:          %d\n", *seed)
	fmt.Printf("\n")

	if r := vol.Mount(true); r != fat.ResultOK {
		log.Fatalf("Mount failed: %s", r.Message())
	}
	defer vol.Unmount()

	if r := vol.MakeDir(*dirPath); r != fat.ResultOK && r != fat.ResultExist {
		log.Fatalf("Failed to create %s: %s", *dirPath, r.Message())
	}

	stats := &Stats{}
	start := time.Now()

	// Write phase: sequential, chunked, one CRC per file.
	crcs := make([]uint32, *fileCount)
	rng := rand.New(rand.NewSource(*seed))
	payload := make([]byte, *fileSize)
	writeStart := time.Now()
	for i := 0; i < *fileCount; i++ {
		rng.Read(payload)
		crcs[i] = crc32.ChecksumIEEE(payload)
		if err := writeFile(vol, testFilePath(i), payload, stats); err != nil {
			stats.errors.Add(1)
			log.Printf("Write %s: %v", testFilePath(i), err)
			continue
		}
		if *verbose {
			log.Printf("Wrote %s (crc %08x)", testFilePath(i), crcs[i])
		}
	}
	writeDur := time.Since(writeStart)

	// Scan phase: the directory must enumerate every file just written.
	found, err := countTestFiles(vol, *dirPath)
	if err != nil {
		stats.errors.Add(1)
		log.Printf("Scan %s: %v", *dirPath, err)
	} else if found != *fileCount {
		stats.errors.Add(1)
		log.Printf("Scan %s: found %d test files, expected %d", *dirPath, found, *fileCount)
	}

	// Verify phase: concurrent readers, bounded by the worker limit. The
	// volume serializes internally, so this stresses handle bookkeeping and
	// cursor state rather than raw throughput.
	verifyStart := time.Now()
	eg, _ := errgroup.WithContext(context.Background())
	eg.SetLimit(*workers)
	for i := 0; i < *fileCount; i++ {
		eg.Go(func() error {
			crc, n, err := readFileCRC(vol, testFilePath(i), stats)
			if err != nil {
				stats.errors.Add(1)
				log.Printf("Read %s: %v", testFilePath(i), err)
				return nil
			}
			if n != int64(*fileSize) {
				stats.errors.Add(1)
				log.Printf("Verify %s: read %d bytes, expected %d", testFilePath(i), n, *fileSize)
				return nil
			}
			if crc != crcs[i] {
				stats.errors.Add(1)
				log.Printf("Verify %s: crc %08x, expected %08x", testFilePath(i), crc, crcs[i])
				return nil
			}
			if *verbose {
				log.Printf("Verified %s", testFilePath(i))
			}
			return nil
		})
	}
	eg.Wait()
	verifyDur := time.Since(verifyStart)

	// Delete phase
	if !*keep {
		for i := 0; i < *fileCount; i++ {
			if r := vol.Unlink(testFilePath(i)); r != fat.ResultOK {
				stats.errors.Add(1)
				log.Printf("Delete %s: %s", testFilePath(i), r.Message())
				continue
			}
			stats.deletes.Add(1)
		}
		if r := vol.RemoveDir(*dirPath); r != fat.ResultOK {
			stats.errors.Add(1)
			log.Printf("Remove %s: %s", *dirPath, r.Message())
		}
	}

	printFinalReport(stats, time.Since(start), writeDur, verifyDur)

	if stats.errors.Load() > 0 {
		os.Exit(1)
	}
}

func testFilePath(i int) string {
	return fmt.Sprintf("%s/TEST%04d.BIN", *dirPath, i)
}

// writeFile stores payload in chunk-sized pieces through a fresh handle.
func writeFile(vol fat.Volume, path string, payload []byte, stats *Stats) error {
	f, r := vol.OpenFile(path, fat.ModeWrite|fat.ModeCreateAlways)
	if r != fat.ResultOK {
		return fmt.Errorf("open: %s", r.Message())
	}
	for off := 0; off < len(payload); off += *chunkSize {
		end := off + *chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		n, r := f.Write(payload[off:end])
		if r != fat.ResultOK {
			f.Close()
			return fmt.Errorf("write at %d: %s", off, r.Message())
		}
		if n != end-off {
			f.Close()
			return fmt.Errorf("short write at %d: %d of %d bytes", off, n, end-off)
		}
		stats.bytesWritten.Add(int64(n))
	}
	if r := f.Sync(); r != fat.ResultOK {
		f.Close()
		return fmt.Errorf("sync: %s", r.Message())
	}
	if r := f.Close(); r != fat.ResultOK {
		return fmt.Errorf("close: %s", r.Message())
	}
	stats.writes.Add(1)
	return nil
}

// readFileCRC reads the file back in chunk-sized pieces and returns the
// running CRC and the byte count.
func readFileCRC(vol fat.Volume, path string, stats *Stats) (uint32, int64, error) {
	f, r := vol.OpenFile(path, fat.ModeRead)
	if r != fat.ResultOK {
		return 0, 0, fmt.Errorf("open: %s", r.Message())
	}
	defer f.Close()

	var crc uint32
	var total int64
	buf := make([]byte, *chunkSize)
	for {
		n, r := f.Read(buf)
		if r != fat.ResultOK {
			return 0, total, fmt.Errorf("read at %d: %s", total, r.Message())
		}
		if n == 0 {
			break
		}
		crc = crc32.Update(crc, crc32.IEEETable, buf[:n])
		total += int64(n)
		stats.bytesRead.Add(int64(n))
	}
	stats.reads.Add(1)
	return crc, total, nil
}

// countTestFiles enumerates dir and counts the TEST*.BIN entries.
func countTestFiles(vol fat.Volume, dir string) (int, error) {
	d, r := vol.OpenDir(dir)
	if r != fat.ResultOK {
		return 0, fmt.Errorf("opendir: %s", r.Message())
	}
	defer d.Close()

	count := 0
	for {
		info, r := d.Read()
		if r != fat.ResultOK {
			return count, fmt.Errorf("readdir: %s", r.Message())
		}
		if info.Name == "" {
			return count, nil
		}
		if strings.HasPrefix(info.Name, "TEST") && strings.HasSuffix(info.Name, ".BIN") {
			count++
		}
	}
}

// printFinalReport prints the final statistics
func printFinalReport(stats *Stats, elapsed, writeDur, verifyDur time.Duration) {
	writes := stats.writes.Load()
	reads := stats.reads.Load()
	deletes := stats.deletes.Load()
	errors := stats.errors.Load()
	bytesWritten := stats.bytesWritten.Load()
	bytesRead := stats.bytesRead.Load()

	fmt.Printf("\n")
	fmt.Printf("Final Results\n")
	fmt.Printf("=============\n")
	fmt.Printf("Duration:          %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Files Written:     %d (%s in %s)\n", writes, formatBytes(bytesWritten), writeDur.Round(time.Millisecond))
	fmt.Printf("Files Verified:    %d (%s in %s)\n", reads, formatBytes(bytesRead), verifyDur.Round(time.Millisecond))
	fmt.Printf("Files Deleted:     %d\n", deletes)
	if writeDur > 0 {
		fmt.Printf("Write Throughput:  %s/s\n", formatBytes(int64(float64(bytesWritten)/writeDur.Seconds())))
	}
	if verifyDur > 0 {
		fmt.Printf("Read Throughput:   %s/s\n", formatBytes(int64(float64(bytesRead)/verifyDur.Seconds())))
	}
	fmt.Printf("\n")

	if errors > 0 {
		fmt.Printf("⚠️  Test completed with %d errors\n", errors)
	} else {
		fmt.Printf("✅ Test completed successfully with no errors\n")
	}
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
