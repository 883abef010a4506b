package slicer

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/esimov/slicer/utils"
	"golang.org/x/term"
)

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

// validExtensions lists the frame formats picked up from the source directory.
var validExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif"}

// Ops holds the input and output of a batch run.
type Ops struct {
	Src, Dst, PipeName string
	Workers            int
	// Keys is read for key presses in interactive mode. It defaults to stdin.
	// The reader stops after Execute returns, but only once its pending read
	// completes, so a reader which never delivers another byte keeps one goroutine blocked.
	Keys io.Reader
}

// job is a frame travelling through the decoding pipeline.
type job struct {
	index int
	path  string
	img   *image.NRGBA
	err   error
}

// Execute replays the frames found in the source directory through a new session
// and writes the final canvas to the destination.
// The frames are decoded concurrently but fed to the session in lexical order.
func (p *Processor) Execute(op *Ops) error {
	session, err := p.NewSession()
	if err != nil {
		return err
	}

	fs, err := os.Stat(op.Src)
	if err != nil {
		return fmt.Errorf("failed to load the source frames: %w", err)
	}
	if !fs.IsDir() {
		return fmt.Errorf("%s should be a directory of frames", op.Src)
	}
	if op.Dst == op.PipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("`-` should be used with a pipe for stdout")
		}
	} else if _, err := outputFormat(op.Dst); err != nil {
		return err
	}

	// Limit the concurrently running workers to maxWorkers.
	if op.Workers <= 0 || op.Workers > maxWorkers {
		op.Workers = utils.Min(runtime.NumCPU(), maxWorkers)
	}

	if p.Spinner == nil {
		p.Spinner = utils.NewSpinner(fmt.Sprintf("%s %s",
			utils.DecorateText("⚡ SLICER", utils.StatusMessage),
			utils.DecorateText("⇢ scanning the frames...", utils.DefaultMessage),
		), time.Millisecond*80, true)
	}

	if p.Interactive {
		restore, err := op.rawMode()
		if err != nil {
			return err
		}
		defer restore()
	}

	done := make(chan struct{})
	defer close(done)

	var keys <-chan rune
	if p.Interactive {
		keys = readKeys(done, op.keyReader())
	}

	// Capture CTRL-C signal and restores back the cursor visibility.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChan)
	go func() {
		select {
		case <-signalChan:
			p.Spinner.RestoreCursor()
			os.Exit(1)
		case <-done:
		}
	}()

	paths, errc := walkDir(done, op.Src, validExtensions)
	frames := p.decode(done, paths, op.Workers)

	var ticker *time.Ticker
	if p.FPS > 0 {
		ticker = time.NewTicker(time.Duration(float64(time.Second) / p.FPS))
		defer ticker.Stop()
	}

	var filter *frameFilter
	if p.Dedup >= 0 {
		filter = newFrameFilter(p.Dedup)
	}

	now := time.Now()
	p.Spinner.Start()
	msg := utils.DecorateText("⚡ SLICER", utils.StatusMessage)

	var (
		count, saved, skipped int
		quit                  bool
	)
	for j := range sequence(done, frames) {
		if ticker != nil {
			<-ticker.C
		}
		if quit, saved = op.applyKeys(session, keys, saved); quit {
			break
		}
		count++
		p.Spinner.Message(fmt.Sprintf("%s %s", msg,
			utils.DecorateText(fmt.Sprintf("⇢ scanning frame %d...", count), utils.DefaultMessage),
		))

		if j.err != nil {
			log.Printf(utils.DecorateText("\nskipping %s: %v", utils.ErrorMessage), filepath.Base(j.path), j.err)
			continue
		}
		if filter != nil && filter.similar(j.img) {
			skipped++
			continue
		}
		flow, err := session.Step(j.img)
		if err != nil {
			log.Printf(utils.DecorateText("\nskipping %s: %v", utils.ErrorMessage), filepath.Base(j.path), err)
			continue
		}
		if p.Debug && flow != nil {
			log.Printf("\n%s: flow (%.2f, %.2f) heading %.1f°, %d active zones",
				filepath.Base(j.path), flow.U, flow.V, flow.Degrees(), len(flow.Active(session.Threshold())))
		}
	}

	if !quit {
		if err := <-errc; err != nil {
			p.Spinner.StopMsg = utils.DecorateText("✘ failed to read the frames", utils.ErrorMessage)
			p.Spinner.Stop()
			return err
		}
	}
	// Quitting before the first frame still saves the (empty) canvas.
	if count == 0 && !quit {
		p.Spinner.Stop()
		return fmt.Errorf("no frames found in %s", op.Src)
	}

	if err := op.write(op.Dst, session.Render()); err != nil {
		p.Spinner.StopMsg = utils.DecorateText("✘ could not save the canvas", utils.ErrorMessage)
		p.Spinner.Stop()
		return err
	}

	elapsed := time.Since(now)
	p.Spinner.StopMsg = fmt.Sprintf("%s %s", msg,
		utils.DecorateText(fmt.Sprintf("⇢ %d frames scanned ✔", count), utils.SuccessMessage),
	)
	p.Spinner.Stop()

	if op.Dst != op.PipeName {
		fmt.Fprintf(os.Stderr, "\nThe canvas has been saved as: %s %s\n",
			utils.DecorateText(filepath.Base(op.Dst), utils.SuccessMessage),
			utils.DefaultColor,
		)
	}
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "Similar frames skipped: %d\n", skipped)
	}
	fmt.Fprintf(os.Stderr, "Execution time: %s (%s)\n",
		utils.DecorateText(utils.FormatTime(elapsed), utils.SuccessMessage),
		utils.FormatRate(count, elapsed),
	)
	return nil
}

// decode starts the workers decoding and preparing the frames sent on the paths channel.
// The results are delivered out of order, tagged with the position of the frame.
func (p *Processor) decode(done <-chan struct{}, paths <-chan string, workers int) <-chan job {
	jobs := make(chan job)
	res := make(chan job)

	go func() {
		defer close(jobs)
		i := 0
		for path := range paths {
			select {
			case <-done:
				return
			case jobs <- job{index: i, path: path}:
				i++
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				img, err := decodeImg(j.path)
				if err == nil {
					j.img = p.Prepare(img)
				}
				j.err = err

				select {
				case <-done:
					return
				case res <- j:
				}
			}
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(res)
		wg.Wait()
	}()

	return res
}

// sequence re-emits the jobs in the order of their index.
func sequence(done <-chan struct{}, in <-chan job) <-chan job {
	out := make(chan job)

	go func() {
		defer close(out)
		pending := make(map[int]job)
		next := 0
		for j := range in {
			pending[j.index] = j
			for {
				j, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++

				select {
				case <-done:
					return
				case out <- j:
				}
			}
		}
	}()
	return out
}

// applyKeys handles the key presses received since the last frame.
// It returns true when the run should stop, together with the updated snapshot count.
func (op *Ops) applyKeys(s *Session, keys <-chan rune, saved int) (bool, int) {
	for {
		select {
		case r, ok := <-keys:
			if !ok {
				return false, saved
			}
			switch s.HandleKey(r) {
			case ActionQuit:
				return true, saved
			case ActionSave:
				saved++
				name := snapshotName(op.Dst, op.PipeName, saved)
				if err := op.write(name, s.Render()); err != nil {
					log.Printf(utils.DecorateText("\ncould not save the snapshot: %v", utils.ErrorMessage), err)
				}
			}
		default:
			return false, saved
		}
	}
}

// snapshotName returns the file name of the n-th snapshot, placed next to the output.
func snapshotName(dst, pipeName string, n int) string {
	if dst == pipeName || dst == "" {
		return fmt.Sprintf("slicer_%03d.jpg", n)
	}
	ext := filepath.Ext(dst)
	return fmt.Sprintf("%s_%03d%s", strings.TrimSuffix(dst, ext), n, ext)
}

// write encodes the image to the named file or to stdout in case of the pipe name.
func (op *Ops) write(name string, img image.Image) error {
	if name == op.PipeName {
		return encodeImg(os.Stdout, "", img)
	}

	out, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("unable to create the destination file: %w", err)
	}
	if err := encodeImg(out, name, img); err != nil {
		out.Close()
		os.Remove(name)
		return err
	}
	return out.Close()
}

func (op *Ops) keyReader() io.Reader {
	if op.Keys != nil {
		return op.Keys
	}
	return os.Stdin
}

// rawMode switches the terminal into raw mode so that the key presses are
// delivered without waiting for a new line. Non terminal inputs are left untouched.
func (op *Ops) rawMode() (func(), error) {
	f, ok := op.keyReader().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func() {}, nil
	}
	state, err := term.MakeRaw(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("could not switch the terminal to raw mode: %w", err)
	}
	return func() { term.Restore(int(f.Fd()), state) }, nil
}

// readKeys sends the runes read from r to the returned channel until r is exhausted
// or the done channel gets closed.
func readKeys(done <-chan struct{}, r io.Reader) <-chan rune {
	keys := make(chan rune, 16)

	go func() {
		defer close(keys)
		br := bufio.NewReader(r)
		for {
			c, _, err := br.ReadRune()
			if err != nil {
				return
			}
			select {
			case <-done:
				return
			default:
			}
			select {
			case <-done:
				return
			case keys <- c:
			}
		}
	}()
	return keys
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each regular file to a new channel.
// It finishes in case the done channel is getting closed.
func walkDir(
	done <-chan struct{},
	src string,
	srcExts []string,
) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !f.Mode().IsRegular() {
				return nil
			}
			if !utils.Contains(srcExts, strings.ToLower(filepath.Ext(f.Name()))) {
				return nil
			}

			select {
			case <-done:
				return errors.New("directory walk cancelled")
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}
