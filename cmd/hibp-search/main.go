package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/GriffinCanCode/hibp/internal/flatfile"
	"github.com/GriffinCanCode/hibp/internal/record"
)

func main() {
	ntlm := flag.Bool("ntlm", false, "search an NTLM database")
	hashIn := flag.Bool("hash", false, "the argument is a hex digest, not a plaintext password")
	verify := flag.Bool("verify", false, "check database ordering before searching")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}
	dbPath, arg := flag.Arg(0), flag.Arg(1)

	var err error
	if *ntlm {
		var needle record.NTLM
		if needle, err = ntlmNeedle(arg, *hashIn); err == nil {
			err = search[record.NTLM](record.NTLMCodec{}, dbPath, needle, needle.Digest[:], *verify)
		}
	} else {
		var needle record.SHA1
		if needle, err = sha1Needle(arg, *hashIn); err == nil {
			err = search[record.SHA1](record.SHA1Codec{}, dbPath, needle, needle.Digest[:], *verify)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "something went wrong:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-ntlm] [-hash] [-verify] dbfile.bin <password|hash>\n", os.Args[0])
	flag.PrintDefaults()
}

func sha1Needle(arg string, hashIn bool) (record.SHA1, error) {
	if !hashIn {
		return record.SHA1Sum(arg), nil
	}
	r := record.SHA1{Count: -1}
	err := record.ParseHexDigest(r.Digest[:], arg)
	return r, err
}

func ntlmNeedle(arg string, hashIn bool) (record.NTLM, error) {
	if !hashIn {
		return record.NTLMSum(arg), nil
	}
	r := record.NTLM{Count: -1}
	err := record.ParseHexDigest(r.Digest[:], arg)
	return r, err
}

func search[R any](c record.Codec[R], path string, needle R, digest []byte, verify bool) error {
	db, err := flatfile.Open[R](c, path)
	if err != nil {
		return err
	}
	defer db.Close()

	if verify {
		if err := flatfile.Verify(db); err != nil {
			return fmt.Errorf("verify %s: %w", path, err)
		}
	}

	start := time.Now()
	found, ok := db.Search(digest)
	fmt.Printf("search took %s\n", time.Since(start))

	fmt.Printf("needle = %s\n", c.Format(needle))
	if ok {
		fmt.Printf("found  = %s\n", c.Format(found))
	} else {
		fmt.Println("not found")
	}
	return nil
}
