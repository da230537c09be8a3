package parser

import "github.com/0x5457/decl-index/internal/models"

// Parser extracts declaration records from a source tree.
type Parser interface {
	// ParseFile returns the declarations of one file. module is the dotted
	// module prefix and root the tree root used for relative paths.
	ParseFile(path, module, root string) ([]models.Record, error)
	// ParseProject walks root and returns every declaration with sequential
	// ids and embedding text filled in. A non-empty subdir keeps only files
	// with a path component equal to it.
	ParseProject(root, subdir string) ([]models.Record, error)
}
