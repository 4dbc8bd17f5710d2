package bert

import (
	"context"
	"fmt"
	"math"

	"github.com/fwojciec/minisearch"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// dense is a fully connected layer with a PyTorch-layout [out, in] matrix.
type dense struct {
	w   weights
	b   []float32
	in  int
	out int
}

// forward computes x·Wᵀ + b for n rows of x.
func (d *dense) forward(x []float32, n int) []float32 {
	y := make([]float32, n*d.out)
	blas32.Gemm(blas.NoTrans, blas.Trans, 1,
		blas32.General{Rows: n, Cols: d.in, Stride: d.in, Data: x},
		blas32.General{Rows: d.out, Cols: d.in, Stride: d.in, Data: d.w.expand()},
		0,
		blas32.General{Rows: n, Cols: d.out, Stride: d.out, Data: y},
	)
	for i := range n {
		row := y[i*d.out : (i+1)*d.out]
		for j, b := range d.b {
			row[j] += b
		}
	}
	return y
}

type layerNorm struct {
	gamma []float32
	beta  []float32
	eps   float64
}

// apply normalizes each row of x in place.
func (ln *layerNorm) apply(x []float32, width int) {
	for off := 0; off < len(x); off += width {
		row := x[off : off+width]
		var mean float64
		for _, v := range row {
			mean += float64(v)
		}
		mean /= float64(width)
		var variance float64
		for _, v := range row {
			d := float64(v) - mean
			variance += d * d
		}
		variance /= float64(width)
		inv := 1 / math.Sqrt(variance+ln.eps)
		for j, v := range row {
			row[j] = float32((float64(v)-mean)*inv)*ln.gamma[j] + ln.beta[j]
		}
	}
}

type layer struct {
	query, key, value dense
	attnOut           dense
	attnNorm          layerNorm
	intermediate      dense
	output            dense
	outNorm           layerNorm
}

// model is a BERT encoder without the pooler head.
type model struct {
	hidden   int
	heads    int
	word     weights
	position weights
	typ      weights // nil if the model has no token type embeddings
	embNorm  layerNorm
	layers   []layer
}

// forward encodes token sequences and returns one mean-pooled,
// L2-normalized vector per sequence. All tokens of the batch go through the
// dense layers together; attention runs per sequence, so no padding is used.
func (m *model) forward(ctx context.Context, seqs [][]int32) ([]minisearch.Vector, error) {
	H := m.hidden
	var n int
	for _, s := range seqs {
		n += len(s)
	}

	h := make([]float32, n*H)
	row := 0
	for _, s := range seqs {
		for pos, id := range s {
			dst := h[row*H : (row+1)*H]
			m.word.addRow(dst, int(id), H)
			m.position.addRow(dst, pos, H)
			if m.typ != nil {
				m.typ.addRow(dst, 0, H)
			}
			row++
		}
	}
	m.embNorm.apply(h, H)

	for i := range m.layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h = m.layers[i].forward(h, n, H, m.heads, seqs)
	}

	out := make([]minisearch.Vector, len(seqs))
	off := 0
	for i, s := range seqs {
		v := make(minisearch.Vector, H)
		for r := off; r < off+len(s); r++ {
			for j, x := range h[r*H : (r+1)*H] {
				v[j] += x
			}
		}
		inv := 1 / float32(len(s))
		for j := range v {
			v[j] *= inv
		}
		out[i] = v.Normalize()
		off += len(s)
	}
	return out, nil
}

func (l *layer) forward(h []float32, n, H, heads int, seqs [][]int32) []float32 {
	q := l.query.forward(h, n)
	k := l.key.forward(h, n)
	v := l.value.forward(h, n)

	d := H / heads
	scale := float32(1 / math.Sqrt(float64(d)))
	attn := make([]float32, n*H)

	off := 0
	for _, s := range seqs {
		L := len(s)
		scores := make([]float32, L*L)
		for head := range heads {
			base := off*H + head*d
			blas32.Gemm(blas.NoTrans, blas.Trans, scale,
				blas32.General{Rows: L, Cols: d, Stride: H, Data: q[base:]},
				blas32.General{Rows: L, Cols: d, Stride: H, Data: k[base:]},
				0,
				blas32.General{Rows: L, Cols: L, Stride: L, Data: scores},
			)
			for r := range L {
				softmax(scores[r*L : (r+1)*L])
			}
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
				blas32.General{Rows: L, Cols: L, Stride: L, Data: scores},
				blas32.General{Rows: L, Cols: d, Stride: H, Data: v[base:]},
				0,
				blas32.General{Rows: L, Cols: d, Stride: H, Data: attn[base:]},
			)
		}
		off += L
	}

	a := l.attnOut.forward(attn, n)
	for i := range a {
		a[i] += h[i]
	}
	l.attnNorm.apply(a, H)

	inter := l.intermediate.forward(a, n)
	for i, x := range inter {
		inter[i] = gelu(x)
	}

	o := l.output.forward(inter, n)
	for i := range o {
		o[i] += a[i]
	}
	l.outNorm.apply(o, H)
	return o
}

func softmax(x []float32) {
	maxv := x[0]
	for _, v := range x[1:] {
		maxv = max(maxv, v)
	}
	var sum float64
	for i, v := range x {
		e := math.Exp(float64(v - maxv))
		x[i] = float32(e)
		sum += e
	}
	inv := float32(1 / sum)
	for i := range x {
		x[i] *= inv
	}
}

// gelu is the exact Gaussian error linear unit.
func gelu(x float32) float32 {
	return float32(0.5 * float64(x) * (1 + math.Erf(float64(x)/math.Sqrt2)))
}

// tensorSet looks up parameters by name with or without the "bert." prefix.
type tensorSet map[string]Tensor

func (ts tensorSet) get(name string, shape ...int) ([]float32, error) {
	t, ok := ts[name]
	if !ok {
		t, ok = ts["bert."+name]
	}
	if !ok {
		return nil, minisearch.Errorf(minisearch.EINVALID, "model weights lack %s", name)
	}
	if len(t.Shape) != len(shape) {
		return nil, minisearch.Errorf(minisearch.EINVALID, "tensor %s has shape %v, want %v", name, t.Shape, shape)
	}
	for i := range shape {
		if shape[i] >= 0 && t.Shape[i] != shape[i] {
			return nil, minisearch.Errorf(minisearch.EINVALID, "tensor %s has shape %v, want %v", name, t.Shape, shape)
		}
	}
	return t.Data, nil
}

func (ts tensorSet) has(name string) bool {
	_, ok := ts[name]
	if !ok {
		_, ok = ts["bert."+name]
	}
	return ok
}

func (ts tensorSet) dense(prefix string, in, out int) (dense, error) {
	w, err := ts.get(prefix+".weight", out, in)
	if err != nil {
		return dense{}, err
	}
	b, err := ts.get(prefix+".bias", out)
	if err != nil {
		return dense{}, err
	}
	return dense{w: newWeights(w), b: b, in: in, out: out}, nil
}

// layerNorm reads LayerNorm parameters named weight/bias or gamma/beta.
func (ts tensorSet) layerNorm(prefix string, width int, eps float64) (layerNorm, error) {
	gammaName, betaName := prefix+".weight", prefix+".bias"
	if !ts.has(gammaName) {
		gammaName, betaName = prefix+".gamma", prefix+".beta"
	}
	gamma, err := ts.get(gammaName, width)
	if err != nil {
		return layerNorm{}, err
	}
	beta, err := ts.get(betaName, width)
	if err != nil {
		return layerNorm{}, err
	}
	return layerNorm{gamma: gamma, beta: beta, eps: eps}, nil
}

// newModel builds the encoder from its configuration and weights.
func newModel(cfg *Config, tensors map[string]Tensor) (*model, error) {
	ts := tensorSet(tensors)
	H := cfg.HiddenSize

	word, err := ts.get("embeddings.word_embeddings.weight", -1, H)
	if err != nil {
		return nil, err
	}
	position, err := ts.get("embeddings.position_embeddings.weight", cfg.MaxPositionEmbeddings, H)
	if err != nil {
		return nil, err
	}
	m := &model{
		hidden:   H,
		heads:    cfg.NumAttentionHeads,
		word:     newWeights(word),
		position: newWeights(position),
	}
	if ts.has("embeddings.token_type_embeddings.weight") {
		typ, err := ts.get("embeddings.token_type_embeddings.weight", -1, H)
		if err != nil {
			return nil, err
		}
		m.typ = newWeights(typ)
	}
	if m.embNorm, err = ts.layerNorm("embeddings.LayerNorm", H, cfg.LayerNormEps); err != nil {
		return nil, err
	}

	m.layers = make([]layer, cfg.NumHiddenLayers)
	for i := range m.layers {
		p := fmt.Sprintf("encoder.layer.%d.", i)
		l := &m.layers[i]
		if l.query, err = ts.dense(p+"attention.self.query", H, H); err != nil {
			return nil, err
		}
		if l.key, err = ts.dense(p+"attention.self.key", H, H); err != nil {
			return nil, err
		}
		if l.value, err = ts.dense(p+"attention.self.value", H, H); err != nil {
			return nil, err
		}
		if l.attnOut, err = ts.dense(p+"attention.output.dense", H, H); err != nil {
			return nil, err
		}
		if l.attnNorm, err = ts.layerNorm(p+"attention.output.LayerNorm", H, cfg.LayerNormEps); err != nil {
			return nil, err
		}
		if l.intermediate, err = ts.dense(p+"intermediate.dense", H, cfg.IntermediateSize); err != nil {
			return nil, err
		}
		if l.output, err = ts.dense(p+"output.dense", cfg.IntermediateSize, H); err != nil {
			return nil, err
		}
		if l.outNorm, err = ts.layerNorm(p+"output.LayerNorm", H, cfg.LayerNormEps); err != nil {
			return nil, err
		}
	}
	return m, nil
}
