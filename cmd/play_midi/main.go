package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cbegin/midishape-go"
	"github.com/cbegin/midishape-go/internal/audio"
)

func main() {
	var (
		inPath     = flag.String("in", "", "input MIDI file")
		sf2Path    = flag.String("sf2", "", "SoundFont (.sf2) to render with")
		wavPath    = flag.String("wav", "", "write a WAV file instead of playing")
		sampleRate = flag.Int("sample-rate", 44100, "output sample rate")
	)
	flag.Parse()

	if *inPath == "" || *sf2Path == "" {
		flag.Usage()
		os.Exit(2)
	}

	s, err := midishape.LoadFile(*inPath)
	if err != nil {
		log.Fatal(err)
	}

	sf2, err := os.Open(*sf2Path)
	if err != nil {
		log.Fatal(err)
	}
	defer sf2.Close()

	samples, err := midishape.RenderSamples(s, sf2, *sampleRate)
	if err != nil {
		log.Fatal(err)
	}

	if *wavPath != "" {
		data := midishape.EncodeWAVFloat32LE(samples, *sampleRate, 2)
		if err := os.WriteFile(*wavPath, data, 0o644); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %s\n", *wavPath)
		return
	}

	pl, err := audio.NewPlayer(*sampleRate, samples)
	if err != nil {
		log.Fatal(err)
	}
	pl.Play()
	pl.Wait()
	if err := pl.Stop(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("playback completed")
}
