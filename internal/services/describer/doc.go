// Package describer names media assets and produces long-form descriptions by
// calling the Gemini generateContent API. The pipeline only depends on its
// input/output contract: given a source file and an output directory it
// returns a sanitized base name and the path of the written description
// artifact, or an error classified for retry.
package describer
