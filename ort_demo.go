//go:build ort

package main

import (
	"fmt"
	"math/rand"
	"os"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/jiesonshan/stylegan2-go/stylegan"
)

func init() {
	runDemo = runDemoORT
}

// runDemoORT synthesizes through an exported generator graph instead of the
// pure-Go forward pass. The ONNX file is an inference-mode export of the
// generator (truncation baked in); input "conditioning" [batch, x_dim],
// output [batch, 3, res, res].
func runDemoORT(cfgPath, outPath string, seed int64, batch int) {
	cfg, err := stylegan.LoadConfig(cfgPath)
	if err != nil {
		fatal("config: %v", err)
	}

	onnxPath := os.Getenv("ONNX_GENERATOR")
	if onnxPath == "" {
		onnxPath = "generator.onnx"
	}
	fmt.Printf("[ORT] Config: %s\n", cfgPath)
	fmt.Printf("[ORT] Graph: %s\n", onnxPath)
	fmt.Printf("[ORT] Seed: %d, Batch: %d\n", seed, batch)

	ortLib := findORTLibrary()
	if ortLib == "" {
		fatal("libonnxruntime not found; set it up or build without -tags ort")
	}
	ort.SetSharedLibraryPath(ortLib)
	if err := ort.InitializeEnvironment(); err != nil {
		fatal("ORT init: %v", err)
	}
	defer ort.DestroyEnvironment()

	opts, err := ort.NewSessionOptions()
	if err != nil {
		fatal("session options: %v", err)
	}
	defer opts.Destroy()
	opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll)

	inputs, outputs, err := ort.GetInputOutputInfo(onnxPath)
	if err != nil {
		fatal("graph info: %v", err)
	}
	inNames := make([]string, len(inputs))
	for i, in := range inputs {
		fmt.Printf("[ORT] input %s(%v %v)\n", in.Name, in.DataType, in.Dimensions)
		inNames[i] = in.Name
	}
	outNames := make([]string, len(outputs))
	for i, out := range outputs {
		fmt.Printf("[ORT] output %s(%v %v)\n", out.Name, out.DataType, out.Dimensions)
		outNames[i] = out.Name
	}

	session, err := ort.NewDynamicAdvancedSession(onnxPath, inNames, outNames, opts)
	if err != nil {
		fatal("session: %v", err)
	}
	defer session.Destroy()

	rng := rand.New(rand.NewSource(seed))
	x := stylegan.RandomOneHot(rng, cfg.XDepth, batch)

	inTensor, err := ort.NewTensor(ort.NewShape(int64(batch), int64(cfg.XDim)), x.Data)
	if err != nil {
		fatal("input tensor: %v", err)
	}
	defer inTensor.Destroy()

	outs := make([]ort.Value, len(outNames))
	if err := session.Run([]ort.Value{inTensor}, outs); err != nil {
		fatal("run: %v", err)
	}
	defer func() {
		for _, o := range outs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	imgOut, ok := outs[0].(*ort.Tensor[float32])
	if !ok {
		fatal("unsupported output tensor type %T", outs[0])
	}
	res := cfg.FinalResolution()
	data := make([]float32, len(imgOut.GetData()))
	copy(data, imgOut.GetData())
	imgs := stylegan.TensorFrom(data, []int{batch, 3, res, res})

	fmt.Printf("[ORT] Saving %s... ", outPath)
	if err := stylegan.SavePNG(imgs, 0, outPath); err != nil {
		fatal("save: %v", err)
	}
	fmt.Println("done")
}

// findORTLibrary looks for libonnxruntime in common locations.
func findORTLibrary() string {
	if p := os.Getenv("ORT_LIB"); p != "" {
		return p
	}
	candidates := []string{
		"/usr/local/lib/libonnxruntime.dylib",
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
