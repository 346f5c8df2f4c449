package testutil

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// tinyModelScript writes a single MatMul graph whose 128x128 float weight
// is large enough for dynamic quantization to shrink it.
const tinyModelScript = `import sys
import numpy as np
import onnx
from onnx import TensorProto, helper, numpy_helper

w = numpy_helper.from_array(np.random.rand(128, 128).astype(np.float32), name="w")
x = helper.make_tensor_value_info("x", TensorProto.FLOAT, [1, 128])
y = helper.make_tensor_value_info("y", TensorProto.FLOAT, [1, 128])
graph = helper.make_graph([helper.make_node("MatMul", ["x", "w"], ["y"])], "tiny", [x], [y], [w])
model = helper.make_model(graph, opset_imports=[helper.make_opsetid("", 13)])
model.ir_version = 8
onnx.save(model, sys.argv[1])
`

// WriteTinyModel builds a small fp32 ONNX model in dir with the python onnx
// package and returns its path. It skips the test when onnx is missing.
func WriteTinyModel(tb testing.TB, dir string) string {
	tb.Helper()

	bin := RequirePythonModules(tb, "numpy", "onnx")
	if bin == "" {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	path := filepath.Join(dir, "tiny_fp32.onnx")
	out, err := exec.CommandContext(ctx, bin, "-c", tinyModelScript, path).CombinedOutput()
	if err != nil {
		tb.Fatalf("build tiny model: %v\n%s", err, out)
	}
	return path
}
