package ui

// =============================================================================
// Form validation messages
// =============================================================================

const (
	MsgAIPrerequisites = "Yapay zeka desteği için lütfen en azından Araç Modelini ve Fiyatını girin."
	MsgRequiredFields  = "Lütfen zorunlu alanları doldurun."
	MsgImageRejected   = "Fotoğraf yüklenemedi. Lütfen daha küçük bir dosya seçin."
)

// =============================================================================
// Contact messages
// =============================================================================

const (
	MsgListingNotFound = "İlan bulunamadı."
)
