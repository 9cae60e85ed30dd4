// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

// DefaultAdducts returns the built-in adduct library for an ion mode.
func DefaultAdducts(polarity string) (*Library, error) {
	if err := validPolarity(polarity); err != nil {
		return nil, err
	}
	l := New()
	if polarity == Positive {
		l.Add("[M+H]+", 1.007276, 1)
		l.Add("[M+Na]+", 22.989221, 1)
		l.Add("[M+K]+", 38.963158, 1)
	} else {
		l.Add("[M-H]-", -1.007276, 1)
		l.Add("[M+Cl]-", 34.969401, 1)
		l.Add("[M+Na-2H]-", 20.974669, 1)
	}
	return l, nil
}

// DefaultMultipleCharges returns the built-in charge-state library for
// an ion mode.
func DefaultMultipleCharges(polarity string) (*Library, error) {
	if err := validPolarity(polarity); err != nil {
		return nil, err
	}
	l := New()
	if polarity == Positive {
		l.Add("[M+H]+", 1.007276, 1)
		l.Add("[M+2H]2+", 1.007276, 2)
		l.Add("[M+3H]3+", 1.007276, 3)
	} else {
		l.Add("[M-H]-", -1.007276, 1)
		l.Add("[M-2H]2-", -1.007276, 2)
		l.Add("[M-3H]3-", -1.007276, 3)
	}
	return l, nil
}

// DefaultIsotopes returns the built-in isotope pair library for an ion
// mode. Potassium only occurs in positive mode, chlorine in negative.
func DefaultIsotopes(polarity string) (Isotopes, error) {
	if err := validPolarity(polarity); err != nil {
		return nil, err
	}
	iso := Isotopes{
		{LabelA: "(12C)", LabelB: "(13C)", MassDifference: 1.003355, AbundanceA: 0.9893, AbundanceB: 0.0107},
		{LabelA: "(32S)", LabelB: "(34S)", MassDifference: 1.995796, AbundanceA: 0.9499, AbundanceB: 0.0425},
	}
	if polarity == Positive {
		iso = append(iso, IsotopePair{LabelA: "(39K)", LabelB: "(41K)", MassDifference: 1.998119, AbundanceA: 0.9326, AbundanceB: 0.0673})
	} else {
		iso = append(iso, IsotopePair{LabelA: "(35Cl)", LabelB: "(37Cl)", MassDifference: 1.997050, AbundanceA: 0.7576, AbundanceB: 0.2424})
	}
	return iso, nil
}
