package model

// LabelSet is the ordered list of emotions. A label's index is the class
// index of the output layer.
type LabelSet [7]string

// EmotionLabels returns the emotion label set in class-index order.
func EmotionLabels() LabelSet {
	return LabelSet{"angry", "disgusted", "fearful", "happy", "sad", "surprised", "neutral"}
}

// Index returns the class index of label, or -1.
func (l LabelSet) Index(label string) int {
	for i, s := range l {
		if s == label {
			return i
		}
	}
	return -1
}

// Image is a grayscale face as rows of pixel intensities. A nil Image means
// no face was supplied.
type Image [][]float32

// Metadata describes the tensors the classifier consumes and produces.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

type PredictionRequest struct {
	Image  []float32   `json:"image,omitempty"`
	Pixels [][]float32 `json:"pixels,omitempty"`
}

type PredictionResponse struct {
	Class       string             `json:"class"`
	Confidence  float32            `json:"confidence"`
	Predictions map[string]float32 `json:"predictions"`
}
