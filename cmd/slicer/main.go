package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/esimov/slicer"
	"github.com/esimov/slicer/utils"
)

const HelpBanner = `
┌─┐┬  ┬┌─┐┌─┐┬─┐
└─┐│  ││  ├┤ ├┬┘
└─┘┴─┘┴└─┘└─┘┴└─

Motion driven slit-scan painter.
    Version: %s

`

// pipeName is the file name that indicates stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

var (
	// Flags
	source      = flag.String("in", "", "Directory of captured frames")
	destination = flag.String("out", "canvas.jpg", "Destination of the final canvas")
	mode        = flag.String("mode", "1", "Scan mode: 1 (line), 2 (square) or 3 (stream)")
	step        = flag.Int("step", slicer.DefaultStep, "Grid step of the flow zones")
	radius      = flag.Int("radius", 0, "Search radius (0 means step/2)")
	threshold   = flag.Int("threshold", slicer.DefaultThreshold, "Zone displacement threshold")
	width       = flag.Int("width", slicer.DefaultCanvasWidth, "Canvas width")
	height      = flag.Int("height", slicer.DefaultCanvasHeight, "Canvas height")
	captureW    = flag.Int("cw", slicer.DefaultCaptureWidth, "Capture width")
	captureH    = flag.Int("ch", slicer.DefaultCaptureHeight, "Capture height")
	blurRadius  = flag.Float64("blur", 0, "Blur radius applied to the captured frames")
	backdrop    = flag.String("bg", "", "Canvas backdrop image (path or url)")
	blendMode   = flag.String("blend", "", "Blend mode of the control window")
	compositeOp = flag.String("comp", "", "Composite operation of the control window (default src_over)")
	hintColor   = flag.String("color", "#000000", "Color of the hints and instructions")
	faceDetect  = flag.Bool("face", false, "Paint only while a face is detected")
	cascade     = flag.String("cc", "", "Cascade classifier")
	faceAngle   = flag.Float64("angle", 0.0, "Plane rotated faces angle")
	fps         = flag.Float64("fps", 0, "Replay the frames at this rate (0 means as fast as possible)")
	dedup       = flag.Int("dedup", -1, "Skip the frames within this perceptual hash distance (-1 disables)")
	keys        = flag.Bool("keys", false, "Read the key presses from the terminal")
	workers     = flag.Int("conc", runtime.NumCPU(), "Number of frames to decode concurrently")
	debug       = flag.Bool("debug", false, "Log the flow of each frame")
)

func main() {
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *source == "" {
		flag.Usage()
		log.Fatal(fmt.Sprintf("%s%s",
			utils.DecorateText("\nPlease provide the directory of the captured frames!", utils.ErrorMessage),
			utils.DefaultColor,
		))
	}
	if *faceDetect && len(*cascade) == 0 {
		log.Fatalf(utils.DecorateText("Please specify a face classifier in case you are using the -face flag!\n", utils.ErrorMessage))
	}

	scanMode, err := slicer.ParseMode(*mode)
	if err != nil {
		log.Fatalf(utils.DecorateText("%v\n", utils.ErrorMessage), err)
	}

	proc := slicer.NewProcessor()
	proc.Mode = scanMode
	proc.Step = *step
	proc.Radius = *radius
	proc.Threshold = *threshold
	proc.CanvasWidth = *width
	proc.CanvasHeight = *height
	proc.CaptureWidth = *captureW
	proc.CaptureHeight = *captureH
	proc.BlurRadius = *blurRadius
	proc.Backdrop = *backdrop
	proc.BlendMode = *blendMode
	proc.CompositeOp = *compositeOp
	proc.HintColor = *hintColor
	proc.FaceAngle = *faceAngle
	proc.FPS = *fps
	proc.Dedup = *dedup
	proc.Interactive = *keys
	proc.Debug = *debug
	if *faceDetect {
		proc.Classifier = *cascade
	}

	if err := proc.Validate(); err != nil {
		log.Fatalf(utils.DecorateText("Invalid options: %v\n", utils.ErrorMessage), err)
	}

	op := &slicer.Ops{
		Src:      *source,
		Dst:      *destination,
		PipeName: pipeName,
		Workers:  *workers,
	}
	if err := proc.Execute(op); err != nil {
		log.Fatalf(
			utils.DecorateText("\nError scanning the frames: %s", utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v\n", err.Error()), utils.DefaultMessage),
		)
	}
}
