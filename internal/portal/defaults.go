package portal

import "github.com/declaranet/declara-cli/internal/engine"

// DefaultMapping returns the built-in selector map for the current portal
// release. It is used when no mapping file exists on disk and doubles as the
// template `declara mapping init` writes out.
func DefaultMapping() *Mapping {
	return &Mapping{
		Version: 1,
		Login: LoginMapping{
			EFirmaButton: engine.FieldSpec{
				Name:      "efirma-button",
				Selectors: []string{"#buttonFiel", "a[href*='firma']", "button#efirma"},
				Kind:      engine.KindAction,
			},
			CertificateInput: engine.FieldSpec{
				Name:      "certificate-input",
				Selectors: []string{"#fileCertificate", "input[name='credentialsCer']"},
				Kind:      engine.KindFile,
			},
			KeyInput: engine.FieldSpec{
				Name:      "key-input",
				Selectors: []string{"#fileKey", "input[name='credentialsKey']"},
				Kind:      engine.KindFile,
			},
			PasswordInput: engine.FieldSpec{
				Name:      "password-input",
				Selectors: []string{"#privateKeyPassword", "input[name='privateKeyPassword']"},
				Kind:      engine.KindText,
			},
			SubmitButton: engine.FieldSpec{
				Name:      "login-submit",
				Selectors: []string{"#submit", "button[type='submit']"},
				Kind:      engine.KindAction,
			},
			ErrorBanner: engine.FieldSpec{
				Name:      "login-error",
				Selectors: []string{".alert-danger", "#errorMessage"},
				Kind:      engine.KindText,
				Optional:  true,
			},
		},
		Navigation: NavigationMapping{
			DeclarationMenu: engine.FieldSpec{
				Name:      "declaration-menu",
				Selectors: []string{"a[href*='presentarDeclaracion']", "#menuPresentar"},
				Kind:      engine.KindAction,
			},
			DraftScope: ".modal-dialog:has(.modal-title)",
			DraftDiscard: engine.FieldSpec{
				Name:      "draft-discard",
				Selectors: []string{".modal-dialog .fa-trash", ".modal-dialog button[title='Eliminar']"},
				Kind:      engine.KindAction,
			},
			DraftConfirm: engine.FieldSpec{
				Name:      "draft-confirm",
				Selectors: []string{".modal-dialog .btn-primary", "button#confirmYes"},
				Kind:      engine.KindAction,
			},
			LoadingScope: "#dialogCargando",
			LoadingClose: engine.FieldSpec{
				Name:      "loading-close",
				Selectors: []string{"#dialogCargando button", "button#btnCerrarCargando"},
				Kind:      engine.KindAction,
			},
			Logout: engine.FieldSpec{
				Name:      "logout",
				Selectors: []string{"a[href*='logout']", "#cerrarSesion"},
				Kind:      engine.KindAction,
			},
		},
		ErrorPhrases: []string{
			"Intente nuevamente",
			"Ha ocurrido un error",
			"servicio no disponible",
		},
		Initial: []StepMapping{
			{Field: &engine.FieldSpec{
				Name:      FieldEjercicio,
				Selectors: []string{"#ejercicio", "select[name='ejercicio']"},
				Kind:      engine.KindChoice,
			}},
			{Field: &engine.FieldSpec{
				Name:      FieldPeriodo,
				Selectors: []string{"#periodo", "select[name='periodo']"},
				Kind:      engine.KindChoice,
				Requires:  []string{FieldEjercicio},
			}},
			{Field: &engine.FieldSpec{
				Name:      FieldTipo,
				Selectors: []string{"#tipoDeclaracion", "select[name='tipoDeclaracion']"},
				Kind:      engine.KindChoice,
				Requires:  []string{FieldPeriodo},
			}},
		},
		AfterInitial: []StepMapping{
			{Field: &engine.FieldSpec{
				Name:      "siguiente",
				Selectors: []string{"#btnSiguiente", "button[title='SIGUIENTE']"},
				Kind:      engine.KindAction,
				Requires:  []string{FieldTipo},
			}},
			{Field: &engine.FieldSpec{
				Name:      "cerrar-carga",
				Selectors: []string{"#dialogCargando button", "button#btnCerrarCargando"},
				Kind:      engine.KindAction,
				Requires:  []string{"siguiente"},
			}},
		},
		ISR: []StepMapping{
			{Field: &engine.FieldSpec{
				Name:      "Ingresos del mes",
				Selectors: []string{"#isrIngresosMes", "input[name='ingresosMes']"},
				Kind:      engine.KindNumeric,
			}},
			{Field: &engine.FieldSpec{
				Name:      "ISR retenido",
				Selectors: []string{"#isrRetenido", "input[name='isrRetenido']"},
				Kind:      engine.KindNumeric,
				Optional:  true,
			}},
			{Popup: &engine.PopupSpec{
				Name: "Otros pagos",
				Trigger: engine.FieldSpec{
					Name:      "otros-pagos-capturar",
					Selectors: []string{"#btnCapturarOtros", "button[title='CAPTURAR']"},
					Kind:      engine.KindAction,
				},
				Scope: "#modalOtrosPagos",
				Add: &engine.FieldSpec{
					Name:      "otros-pagos-agregar",
					Selectors: []string{"#btnAgregar", "button[title='AGREGAR']"},
					Kind:      engine.KindAction,
				},
				Fields: []engine.FieldSpec{
					{Name: "Concepto", Selectors: []string{"#concepto", "input[name='concepto']"}, Kind: engine.KindText},
					{Name: "Importe", Selectors: []string{"#importe", "input[name='importe']"}, Kind: engine.KindNumeric},
				},
				Accept: &engine.FieldSpec{
					Name:      "otros-pagos-aceptar",
					Selectors: []string{"#btnAceptar", "button[title='ACEPTAR']"},
					Kind:      engine.KindAction,
				},
				Confirm: engine.FieldSpec{
					Name:      "otros-pagos-cerrar",
					Selectors: []string{"#btnGuardarCerrar", "button[title='CERRAR']"},
					Kind:      engine.KindAction,
				},
			}},
		},
		IVA: []StepMapping{
			{Field: &engine.FieldSpec{
				Name:      "Actos gravados 16%",
				Selectors: []string{"#ivaActos16", "input[name='actosGravados16']"},
				Kind:      engine.KindNumeric,
			}},
			{Field: &engine.FieldSpec{
				Name:      "IVA acreditable",
				Selectors: []string{"#ivaAcreditable", "input[name='ivaAcreditable']"},
				Kind:      engine.KindNumeric,
				Optional:  true,
			}},
		},
		Targets: []TargetMapping{
			{Name: TargetISRAPagar, Field: engine.FieldSpec{
				Name:      TargetISRAPagar,
				Selectors: []string{"#totalISR", "td#isrAPagar"},
			}},
			{Name: TargetIVAAPagar, Field: engine.FieldSpec{
				Name:      TargetIVAAPagar,
				Selectors: []string{"#totalIVA", "td#ivaAPagar"},
			}},
			{Name: TargetTotalAPagar, Field: engine.FieldSpec{
				Name:      TargetTotalAPagar,
				Selectors: []string{"#totalAPagar", "td#totalAPagar"},
			}},
		},
		Send: engine.FieldSpec{
			Name:      "enviar",
			Selectors: []string{"#btnEnviar", "button[title='ENVIAR DECLARACIÓN']"},
			Kind:      engine.KindAction,
		},
	}
}
