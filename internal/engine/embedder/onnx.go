package embedder

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Only the first call has
// any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// sharedLibraryPath resolves the ONNX Runtime library: AMBER_ORT_LIB wins,
// otherwise the library is expected next to the model file.
func sharedLibraryPath(modelPath string) string {
	if p := os.Getenv("AMBER_ORT_LIB"); p != "" {
		return p
	}
	name := "libonnxruntime.so"
	switch runtime.GOOS {
	case "darwin":
		name = "libonnxruntime.dylib"
	case "windows":
		name = "onnxruntime.dll"
	}
	return filepath.Join(filepath.Dir(modelPath), name)
}

// onnxSession wraps a DynamicAdvancedSession for BERT-style encoders.
type onnxSession struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	hasTypeIDs bool
	outputName string
	embedDim   int64
}

// newONNXSession loads the ONNX model and creates an inference session after
// validating its input/output tensors.
func newONNXSession(modelPath string) (*onnxSession, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("onnx: %w", err)
	}
	if err := initORT(sharedLibraryPath(modelPath)); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}

	inputNames, hasTypeIDs, err := validateInputs(inputs)
	if err != nil {
		return nil, err
	}

	out, err := pickOutput(outputs)
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(4)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		inputNames,
		[]string{out.Name},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &onnxSession{
		session:    session,
		inputNames: inputNames,
		hasTypeIDs: hasTypeIDs,
		outputName: out.Name,
		embedDim:   out.Dimensions[2],
	}, nil
}

// validateInputs checks for the BERT-style inputs. token_type_ids is optional:
// some MiniLM exports drop it.
func validateInputs(inputs []ort.InputOutputInfo) ([]string, bool, error) {
	nameSet := make(map[string]bool, len(inputs))
	for _, inp := range inputs {
		nameSet[inp.Name] = true
	}
	for _, name := range []string{"input_ids", "attention_mask"} {
		if !nameSet[name] {
			return nil, false, fmt.Errorf("onnx: model missing required input %q", name)
		}
	}
	if nameSet["token_type_ids"] {
		return []string{"input_ids", "attention_mask", "token_type_ids"}, true, nil
	}
	return []string{"input_ids", "attention_mask"}, false, nil
}

// pickOutput selects the token-level hidden state tensor [batch, seq, dim],
// preferring one named last_hidden_state.
func pickOutput(outputs []ort.InputOutputInfo) (ort.InputOutputInfo, error) {
	if len(outputs) == 0 {
		return ort.InputOutputInfo{}, fmt.Errorf("onnx: model has no outputs")
	}
	for _, o := range outputs {
		if o.Name == "last_hidden_state" && len(o.Dimensions) == 3 {
			return o, nil
		}
	}
	if len(outputs[0].Dimensions) != 3 {
		return ort.InputOutputInfo{}, fmt.Errorf("onnx: expected 3D output tensor, got %v", outputs[0].Dimensions)
	}
	return outputs[0], nil
}

// infer runs the encoder over one padded batch and returns the flat
// [size * seqLen * embedDim] hidden states.
func (s *onnxSession) infer(b batch) ([]float32, error) {
	shape := ort.NewShape(b.size, b.seqLen)

	feeds := [][]int64{b.inputIDs, b.attentionMask}
	if s.hasTypeIDs {
		feeds = append(feeds, b.tokenTypeIDs)
	}
	inputs := make([]ort.Value, 0, len(feeds))
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()
	for i, data := range feeds {
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("onnx: input %s: %w", s.inputNames[i], err)
		}
		inputs = append(inputs, t)
	}

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(b.size, b.seqLen, s.embedDim))
	if err != nil {
		return nil, fmt.Errorf("onnx: output tensor: %w", err)
	}
	defer out.Destroy()

	if err := s.session.Run(inputs, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx: run: %w", err)
	}
	return slices.Clone(out.GetData()), nil
}

func (s *onnxSession) close() error {
	return s.session.Destroy()
}
