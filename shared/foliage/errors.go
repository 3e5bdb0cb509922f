package foliage

import "errors"

var (
	// ErrUnknownFoliageType indica um nome de tipo que nenhum ator conhece.
	ErrUnknownFoliageType = errors.New("foliage: tipo desconhecido")
	// ErrCorruptArchive indica um arquivo de foliage malformado.
	ErrCorruptArchive = errors.New("foliage: arquivo corrompido")
)
