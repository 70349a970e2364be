package domain

// CheckpointBlob is a serialized model checkpoint.
type CheckpointBlob struct {
	Model []byte `bson:"model"`
}
