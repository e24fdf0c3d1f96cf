package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/jiesonshan/stylegan2-go/stylegan"
)

// runDemo is swapped for the ONNX Runtime path when built with -tags ort.
var runDemo = runDemoPure

func main() {
	if len(os.Args) < 2 {
		fmt.Println("stylegan2-go — conditional StyleGAN2 generator (pure Go)")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  stylegan2-go <config.yaml> [output.png] [seed] [batch]")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  stylegan2-go config.yaml sample.png 42 2")
		os.Exit(0)
	}

	cfgPath := os.Args[1]
	outPath := "stylegan2_output.png"
	seed := int64(42)
	batch := 2

	if len(os.Args) > 2 {
		outPath = os.Args[2]
	}
	if len(os.Args) > 3 {
		fmt.Sscanf(os.Args[3], "%d", &seed)
	}
	if len(os.Args) > 4 {
		fmt.Sscanf(os.Args[4], "%d", &batch)
	}

	runDemo(cfgPath, outPath, seed, batch)
}

func runDemoPure(cfgPath, outPath string, seed int64, batch int) {
	cfg, err := stylegan.LoadConfig(cfgPath)
	if err != nil {
		fatal("config: %v", err)
	}
	fmt.Printf("Config: %s\n", cfgPath)
	fmt.Printf("Resolutions: %v, featuremaps: %v\n", cfg.Resolutions, cfg.Featuremaps)
	fmt.Printf("Seed: %d, Batch: %d, Output: %dx%d\n", seed, batch, cfg.FinalResolution(), cfg.FinalResolution())

	fmt.Print("\nBuilding generator... ")
	start := time.Now()
	gen, err := stylegan.NewGenerator(cfg, seed)
	if err != nil {
		fatal("generator: %v", err)
	}
	fmt.Printf("done (%v)\n", time.Since(start))

	rng := rand.New(rand.NewSource(seed))
	x := stylegan.RandomOneHot(rng, cfg.XDepth, batch)

	// Training-mode pass: updates w_avg, applies style mixing.
	fmt.Print("Training forward... ")
	start = time.Now()
	imgs, err := gen.Forward(x, true)
	if err != nil {
		fatal("training forward: %v", err)
	}
	fmt.Printf("done (%v), shape %v\n", time.Since(start), imgs.Shape)
	fmt.Printf("  w_avg[:4] = [%.4f, %.4f, %.4f, %.4f]\n",
		gen.WAvg.Data[0], gen.WAvg.Data[1], gen.WAvg.Data[2], gen.WAvg.Data[3])

	// Inference-mode pass: truncation trick, no state mutation.
	fmt.Print("Inference forward... ")
	start = time.Now()
	imgs, err = gen.Forward(x, false)
	if err != nil {
		fatal("inference forward: %v", err)
	}
	fmt.Printf("done (%v), shape %v\n", time.Since(start), imgs.Shape)

	fmt.Printf("Saving %s... ", outPath)
	if err := stylegan.SavePNG(imgs, 0, outPath); err != nil {
		fatal("save: %v", err)
	}
	fmt.Println("done")

	// Shadow generator kept as an EMA of the primary weights.
	fmt.Print("\nEMA shadow sync... ")
	shadow, err := stylegan.NewGenerator(cfg, seed+1)
	if err != nil {
		fatal("shadow generator: %v", err)
	}
	if err := shadow.SetAsMovingAverageOf(gen, 0.99, 0.0); err != nil {
		fatal("ema sync: %v", err)
	}
	fmt.Println("done")

	ckptPath := outPath + ".safetensors"
	fmt.Printf("Saving checkpoint %s... ", ckptPath)
	if err := gen.SaveCheckpoint(ckptPath); err != nil {
		fatal("checkpoint: %v", err)
	}
	fmt.Println("done")

	fmt.Println("\nParameters:")
	total := 0
	for _, p := range gen.Params() {
		fmt.Printf("  %s: %v\n", p.Name, p.Tensor.Shape)
		total += p.Tensor.Numel()
	}
	fmt.Printf("Total: %d values\n", total)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
