// szd decompresses a .cusza archive back into a raw little-endian float64
// array, written alongside the archive with a .xout suffix.
//
// Usage:
//
//	szd input.f64.cusza
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"github.com/mewkiz/pkg/osutil"
	"github.com/mewkiz/pkg/pathutil"
	"github.com/pkg/errors"

	"github.com/cuszgo/sz"
)

func main() {
	force := flag.Bool("f", false, "force overwrite of an existing output file")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: szd [flags] input.cusza")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := decompress(flag.Arg(0), *force); err != nil {
		log.Fatalf("!! %+v", err)
	}
}

func decompress(archivePath string, force bool) error {
	if !strings.HasSuffix(archivePath, ".cusza") {
		return errors.Errorf("%s: expected a .cusza archive", archivePath)
	}
	log.Printf("decompressing %s", pathutil.TrimExt(archivePath))

	blob, err := os.ReadFile(archivePath)
	if err != nil {
		return errors.WithStack(err)
	}
	_, out, err := sz.Decompress(context.Background(), blob)
	if err != nil {
		return err
	}

	outPath := archivePath + ".xout"
	if !force && osutil.Exists(outPath) {
		return errors.Errorf("%s already exists; pass -f to overwrite", outPath)
	}
	if err := os.WriteFile(outPath, encodeFloat64LE(out), 0o644); err != nil {
		return errors.WithStack(err)
	}
	log.Printf("wrote %s (%d samples)", outPath, len(out))
	return nil
}

func encodeFloat64LE(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], math.Float64bits(v))
	}
	return buf
}
