package usecase

import "text/template"

func (uc *AccountUseCase) SetWelcomeTemplate(t *template.Template) {
	uc.messages.welcome = t
}
