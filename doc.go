// Package sz implements a GPU-style lossy compressor for dense
// floating-point arrays under an absolute or range-relative error bound.
//
// The pipeline mirrors the reference cuSZ design: a dual-output Lorenzo
// predictor-quantizer splits each sample into a quantizable code or an
// outlier, a CSR gatherer compacts the sparse outlier plane, a
// coarse-grained canonical Huffman codec compresses the dense quant-code
// stream, and an archive orchestrator stitches a fixed header and the
// encoded subfiles into one blob. See the archive, predictor, outlier,
// huffman, header, and szerr packages for the individual stages; this
// package is a thin façade translating an absolute or relative error bound
// into a compress/decompress call.
package sz
