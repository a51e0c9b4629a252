package model

// EmbeddingDimension is the dimension of the embedding vector.
// Gemini text-embedding-004 uses 768 dimensions.
const EmbeddingDimension = 768

// EmbeddingModelVersion tags the index with the model that produced its
// vectors. A mismatch on load triggers a full rebuild rather than serving
// incompatible vectors.
const EmbeddingModelVersion = "gemini/text-embedding-004@768"
