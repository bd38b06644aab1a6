package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/midishape-go"
)

func main() {
	var (
		inPath    = flag.String("in", "", "input MIDI file")
		outPath   = flag.String("out", "", "output MIDI file")
		filters   = flag.String("filters", "", "comma-separated filter chain: thin|fixedtempo|swing|deswing")
		swingMult = flag.Float64("swing-mult", 1.0, "beat multiplier for swing/deswing")
		ticks     = flag.Int("ticks", 96, "output ticks per beat")
		verbose   = flag.Bool("verbose", false, "log import diagnostics")
	)
	flag.Parse()

	if *inPath == "" || *outPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	chain, err := buildFilterChain(*filters, *swingMult)
	if err != nil {
		log.Fatal(err)
	}

	opts := []midishape.Option{midishape.WithTicksPerBeat(*ticks)}
	if *verbose {
		logger := logrus.New()
		logger.SetLevel(logrus.DebugLevel)
		opts = append(opts, midishape.WithLogger(logger))
	}

	if err := midishape.ProcessFile(*inPath, *outPath, chain, opts...); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s\n", *outPath)
}

func buildFilterChain(spec string, swingMult float64) ([]midishape.Filter, error) {
	var chain []midishape.Filter
	for _, name := range strings.Split(spec, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "":
			continue
		case "thin":
			chain = append(chain, midishape.ThinChords())
		case "fixedtempo":
			chain = append(chain, midishape.FixedTempo())
		case "swing":
			f, err := midishape.Swing(swingMult)
			if err != nil {
				return nil, err
			}
			chain = append(chain, f)
		case "deswing":
			f, err := midishape.Deswing(swingMult)
			if err != nil {
				return nil, err
			}
			chain = append(chain, f)
		default:
			return nil, fmt.Errorf("invalid filter %q (expected thin|fixedtempo|swing|deswing)", name)
		}
	}
	return chain, nil
}
