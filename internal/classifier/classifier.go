// Package classifier runs a TFLite image classification model over captured
// stills and gates the raw prediction into a bird/no-bird decision.
package classifier

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"sync"
	"time"

	tflite "github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/tphakala/birdfeeder-go/internal/conf"
	"github.com/tphakala/birdfeeder-go/internal/errors"
	"github.com/tphakala/birdfeeder-go/internal/logging"
)

// Result is a single classification outcome: the top label of the model's
// taxonomy and its confidence in [0,1].
type Result struct {
	Label      string
	Confidence float64
}

// Classifier wraps a TFLite image classification model. The interpreter is a
// process-wide singleton and is not safe for concurrent invocation, so
// Classify serializes access internally.
type Classifier struct {
	interpreter *tflite.Interpreter
	model       *tflite.Model
	labels      []string
	settings    conf.ClassifierSettings
	inputWidth  int
	inputHeight int
	log         *slog.Logger
	mu          sync.Mutex
}

// New loads the TFLite model and label file and prepares the interpreter.
func New(settings conf.ClassifierSettings) (*Classifier, error) {
	start := time.Now()

	modelData, err := os.ReadFile(settings.ModelPath)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read model file: %w", err)).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Context("model_path", settings.ModelPath).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Context("model_size_mb", len(modelData)/1024/1024).
			Build()
	}

	labels, err := LoadLabels(settings.LabelPath)
	if err != nil {
		return nil, err
	}

	c := &Classifier{
		model:    model,
		labels:   labels,
		settings: settings,
		log:      logging.ForService("classifier"),
	}

	if err := c.initializeInterpreter(); err != nil {
		return nil, err
	}

	c.log.Info("classifier initialized",
		"model_path", settings.ModelPath,
		"labels", len(labels),
		"input", fmt.Sprintf("%dx%d", c.inputWidth, c.inputHeight),
		"duration", time.Since(start))
	return c, nil
}

// initializeInterpreter builds the interpreter, optionally behind the
// XNNPACK delegate, and validates the tensor shapes against the label file.
func (c *Classifier) initializeInterpreter() error {
	threads := c.determineThreadCount(c.settings.Threads)

	options := tflite.NewInterpreterOptions()
	if c.settings.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))})
		if delegate == nil {
			c.log.Warn("failed to create XNNPACK delegate, falling back to default CPU")
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(threads)
	}

	c.interpreter = tflite.NewInterpreter(c.model, options)
	if c.interpreter == nil {
		return errors.Newf("cannot create TensorFlow Lite interpreter").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}

	if status := c.interpreter.AllocateTensors(); status != tflite.OK {
		return errors.Newf("tensor allocation failed").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}

	input := c.interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 {
		return errors.Newf("unexpected input tensor shape").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}
	// Input layout is NHWC
	c.inputHeight = input.Dim(1)
	c.inputWidth = input.Dim(2)

	output := c.interpreter.GetOutputTensor(0)
	if output == nil {
		return errors.Newf("cannot get output tensor").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}
	classes := output.Dim(output.NumDims() - 1)
	if classes != len(c.labels) {
		return errors.Newf("label count %d does not match model output size %d", len(c.labels), classes).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Context("label_path", c.settings.LabelPath).
			Build()
	}

	return nil
}

// determineThreadCount returns the interpreter thread count, capped to the
// machine when the setting is zero or too large.
func (c *Classifier) determineThreadCount(configured int) int {
	cpus := runtime.NumCPU()
	if configured <= 0 || configured > cpus {
		return cpus
	}
	return configured
}

// Classify runs inference on the image at path and returns the top label
// with its softmax confidence.
func (c *Classifier) Classify(path string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	sample, err := loadImageTensor(path, c.inputWidth, c.inputHeight)
	if err != nil {
		return Result{}, err
	}

	inputTensor := c.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return Result{}, errors.Newf("cannot get input tensor").
			Component("classifier").
			Category(errors.CategoryInference).
			Build()
	}
	copy(inputTensor.Float32s(), sample)

	if status := c.interpreter.Invoke(); status != tflite.OK {
		return Result{}, errors.Newf("tensor invoke failed: %v", status).
			Component("classifier").
			Category(errors.CategoryInference).
			Context("image_path", path).
			Timing("classify", time.Since(start)).
			Build()
	}

	outputTensor := c.interpreter.GetOutputTensor(0)
	logits := extractPredictions(outputTensor)
	confidences := softmax(logits)

	best := 0
	for i, conf := range confidences {
		if conf > confidences[best] {
			best = i
		}
	}

	result := Result{
		Label:      c.labels[best],
		Confidence: float64(confidences[best]),
	}
	c.log.Debug("image classified",
		"path", path,
		"label", result.Label,
		"confidence", result.Confidence,
		"duration", time.Since(start))
	return result, nil
}

// Close releases the interpreter and model.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
	if c.model != nil {
		c.model.Delete()
		c.model = nil
	}
	return nil
}

// extractPredictions copies prediction values out of the output tensor.
func extractPredictions(tensor *tflite.Tensor) []float32 {
	predSize := tensor.Dim(tensor.NumDims() - 1)
	predictions := make([]float32, predSize)
	copy(predictions, tensor.Float32s())
	return predictions
}

// softmax converts raw logits to a probability distribution.
func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxLogit := logits[0]
	for _, l := range logits {
		if l > maxLogit {
			maxLogit = l
		}
	}
	var sum float64
	out := make([]float32, len(logits))
	for i, l := range logits {
		e := math.Exp(float64(l - maxLogit))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}
