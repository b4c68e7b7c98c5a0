package domain

// DefaultKeyPrefix namespaces every key this service writes to the document store.
const DefaultKeyPrefix = "ipreg:"

// DefaultSimilarityThreshold is the cosine score above which a description is a duplicate.
const DefaultSimilarityThreshold = 0.9
